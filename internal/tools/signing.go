// SPDX-License-Identifier: MPL-2.0

package tools

import (
	"strconv"

	"github.com/mobundle/mobundle/internal/toolexec"
)

type (
	// Keystore identifies a signing key inside a Java keystore.
	Keystore struct {
		Path     string
		Password string
		Alias    string
		// KeyPassword defaults to Password when empty.
		KeyPassword string
	}

	// KeytoolGenKey creates a new self-signed key pair.
	KeytoolGenKey struct {
		Path         string
		Key          Keystore
		DName        string
		KeyAlg       string
		KeySize      int
		ValidityDays int
	}

	// KeytoolList prints the certificate of an alias in a keystore.
	KeytoolList struct {
		Path string
		Key  Keystore
	}

	// KeytoolPrintCert prints the certificates that signed an archive.
	KeytoolPrintCert struct {
		Path    string
		JarFile string
	}

	// ApksignerSign signs an APK in place.
	ApksignerSign struct {
		Path string
		Key  Keystore
		APK  string
	}

	// ApksignerVerify verifies an APK and prints signer certificates.
	ApksignerVerify struct {
		Path string
		APK  string
	}

	// JarsignerSign signs an archive (used for app bundles).
	JarsignerSign struct {
		Path    string
		Key     Keystore
		Archive string
	}

	// JarsignerVerify verifies a signed archive.
	JarsignerVerify struct {
		Path    string
		Archive string
	}
)

func (k Keystore) keyPassword() string {
	return orDefault(k.KeyPassword, k.Password)
}

// Command renders `keytool -genkeypair`.
func (k KeytoolGenKey) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(k.Path, "keytool"),
		Args: []string{
			"-genkeypair", "-v",
			"-keystore", k.Key.Path,
			"-storepass", k.Key.Password,
			"-alias", k.Key.Alias,
			"-keypass", k.Key.keyPassword(),
			"-dname", k.DName,
			"-keyalg", orDefault(k.KeyAlg, "RSA"),
			"-keysize", strconv.Itoa(k.KeySize),
			"-validity", strconv.Itoa(k.ValidityDays),
		},
	}
}

// Command renders `keytool -list -v` for the alias.
func (k KeytoolList) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(k.Path, "keytool"),
		Args: []string{"-list", "-v", "-keystore", k.Key.Path, "-storepass", k.Key.Password, "-alias", k.Key.Alias},
	}
}

// Command renders `keytool -printcert -jarfile`.
func (k KeytoolPrintCert) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(k.Path, "keytool"),
		Args: []string{"-printcert", "-jarfile", k.JarFile},
	}
}

// Command renders `apksigner sign`.
func (a ApksignerSign) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(a.Path, "apksigner"),
		Args: []string{
			"sign",
			"--ks", a.Key.Path,
			"--ks-pass", "pass:" + a.Key.Password,
			"--ks-key-alias", a.Key.Alias,
			"--key-pass", "pass:" + a.Key.keyPassword(),
			a.APK,
		},
	}
}

// Command renders `apksigner verify --print-certs`.
func (a ApksignerVerify) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(a.Path, "apksigner"),
		Args: []string{"verify", "--print-certs", a.APK},
	}
}

// Command renders `jarsigner` with SHA-256 digests.
func (j JarsignerSign) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(j.Path, "jarsigner"),
		Args: []string{
			"-sigalg", "SHA256withRSA",
			"-digestalg", "SHA-256",
			"-keystore", j.Key.Path,
			"-storepass", j.Key.Password,
			"-keypass", j.Key.keyPassword(),
			j.Archive, j.Key.Alias,
		},
	}
}

// Command renders `jarsigner -verify -strict`. Without -strict an unsigned
// archive exits 0.
func (j JarsignerVerify) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(j.Path, "jarsigner"),
		Args: []string{"-verify", "-strict", "-verbose", "-certs", j.Archive},
	}
}
