package registry

import (
	"path/filepath"
	"strings"
)

// HiveKind classifies a hive file by its well-known on-disk name.
type HiveKind string

const (
	HiveUser     HiveKind = "NTUSER.DAT"
	HiveSoftware HiveKind = "SOFTWARE"
	HiveSystem   HiveKind = "SYSTEM"
	HiveUnknown  HiveKind = ""
)

// Categories attached to extracted entries. The scoring engine keys off the
// autostart_* and installed_software categories.
const (
	CategoryAutostartRun     = "autostart_run"
	CategoryAutostartRunOnce = "autostart_runonce"
	CategoryOSVersion        = "os_version"
	CategoryInstalledSW      = "installed_software"
	CategoryServices         = "services"
	CategoryUserActivity     = "user_activity"
	CategoryRegExport        = "reg_export"
)

// Target is one key worth extracting from a hive. Paths use backslash
// separators with no leading separator; the hive adapter owns the
// translation to whatever the parser library expects.
type Target struct {
	KeyPath  string
	Category string

	// Recurse extracts values from each direct subkey instead of the key
	// itself (Uninstall and Services are containers, not value holders).
	Recurse bool

	// ValueNames restricts extraction to these value names (case
	// insensitive). Empty means every value.
	ValueNames []string
}

var hiveTargets = map[HiveKind][]Target{
	HiveUser: {
		{KeyPath: `Software\Microsoft\Windows\CurrentVersion\Run`, Category: CategoryAutostartRun},
		{KeyPath: `Software\Microsoft\Windows\CurrentVersion\RunOnce`, Category: CategoryAutostartRunOnce},
		{KeyPath: `Software\Microsoft\Windows\CurrentVersion\Explorer\TypedPaths`, Category: CategoryUserActivity},
	},
	HiveSoftware: {
		{KeyPath: `Microsoft\Windows NT\CurrentVersion`, Category: CategoryOSVersion},
		{KeyPath: `Microsoft\Windows\CurrentVersion\Run`, Category: CategoryAutostartRun},
		{KeyPath: `Microsoft\Windows\CurrentVersion\RunOnce`, Category: CategoryAutostartRunOnce},
		{KeyPath: `Microsoft\Windows\CurrentVersion\Uninstall`, Category: CategoryInstalledSW, Recurse: true, ValueNames: installedSoftwareValues},
	},
	HiveSystem: {
		{KeyPath: `ControlSet001\Services`, Category: CategoryServices, Recurse: true},
	},
}

// installedSoftwareValues is the noise filter for Uninstall records: only the
// fields an investigator compares across hosts.
var installedSoftwareValues = []string{
	"DisplayName",
	"Publisher",
	"DisplayVersion",
	"InstallLocation",
	"UninstallString",
	"QuietUninstallString",
}

// DetectHiveKind classifies a hive file by filename prefix.
func DetectHiveKind(path string) HiveKind {
	base := strings.ToUpper(filepath.Base(path))
	switch {
	case strings.HasPrefix(base, "NTUSER"):
		return HiveUser
	case strings.HasPrefix(base, "SOFTWARE"):
		return HiveSoftware
	case strings.HasPrefix(base, "SYSTEM"):
		return HiveSystem
	}
	return HiveUnknown
}

// exportPrefix maps a canonical key-path prefix (relative to the hive root,
// with any SOFTWARE/Software top-level segment already stripped) to the
// category it implies for a .reg export section.
type exportPrefix struct {
	prefix   string
	category string
}

// Ordered longest-first so Run does not swallow RunOnce.
var exportPrefixes = []exportPrefix{
	{`Microsoft\Windows\CurrentVersion\Explorer\TypedPaths`, CategoryUserActivity},
	{`Microsoft\Windows\CurrentVersion\Uninstall`, CategoryInstalledSW},
	{`Microsoft\Windows\CurrentVersion\RunOnce`, CategoryAutostartRunOnce},
	{`Microsoft\Windows\CurrentVersion\Run`, CategoryAutostartRun},
	{`Microsoft\Windows NT\CurrentVersion`, CategoryOSVersion},
}

// classifyExportPath resolves the category for a .reg section header path
// such as `HKEY_LOCAL_MACHINE\SOFTWARE\Microsoft\Windows\CurrentVersion\Run`.
// Sections outside the high-value prefixes return "".
func classifyExportPath(sectionPath string) string {
	rel := sectionPath

	// Strip the root key and an optional SOFTWARE/Software segment so the
	// same prefixes classify HKLM and HKCU exports alike.
	if i := strings.Index(rel, `\`); i >= 0 && strings.HasPrefix(strings.ToUpper(rel), "HKEY_") {
		rel = rel[i+1:]
	}
	if i := strings.Index(rel, `\`); i >= 0 && strings.EqualFold(rel[:i], "SOFTWARE") {
		rel = rel[i+1:]
	}

	for _, ep := range exportPrefixes {
		if hasPathPrefix(rel, ep.prefix) {
			return ep.category
		}
	}
	return ""
}

// hasPathPrefix reports whether path starts with prefix on a path-segment
// boundary, case insensitively.
func hasPathPrefix(path, prefix string) bool {
	if len(path) < len(prefix) {
		return false
	}
	if !strings.EqualFold(path[:len(prefix)], prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '\\'
}

func allowedValueName(allow []string, name string) bool {
	if len(allow) == 0 {
		return true
	}
	for _, a := range allow {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
