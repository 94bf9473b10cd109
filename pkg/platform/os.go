// SPDX-License-Identifier: MPL-2.0

package platform

// OS name constants for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// Windows executable suffixes used by SDK and NDK tools.
const (
	ExeSuffix   = ".exe"
	BatchSuffix = ".bat"
	CmdSuffix   = ".cmd"
)

// ToolName returns name with suffix appended when goos is Windows, and name
// unchanged elsewhere.
//
//	ToolName("windows", "zipalign", ExeSuffix) // "zipalign.exe"
//	ToolName("linux", "zipalign", ExeSuffix)   // "zipalign"
func ToolName(goos, name, suffix string) string {
	if goos != Windows {
		return name
	}
	return name + suffix
}
