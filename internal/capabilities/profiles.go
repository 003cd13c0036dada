package capabilities

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/lewisedginton/ron/internal/config"
)

// Command is an argv vector. A nil Command means the platform has no
// equivalent for the capability.
type Command []string

// Disk is one mounted volume as reported by the platform.
type Disk struct {
	Caption   string
	FreeBytes int64
	SizeBytes int64
}

// Profile describes how each capability is carried out on one platform.
type Profile struct {
	Name string

	CPU Command
	// ParseCPU returns the CPU load percentage.
	ParseCPU func(out string) (string, bool)

	Memory Command
	// ParseMemory returns total and free memory in KiB.
	ParseMemory func(out string) (totalKB, freeKB int64, ok bool)

	// Services are checked by CheckServices; RestartableServices is the
	// subset RestartServices may bounce.
	Services            []string
	RestartableServices []string
	ServiceQuery        func(service string) Command
	ServiceRunning      func(out string, err error) bool
	ServiceStop         func(service string) Command
	ServiceStart        func(service string) Command

	TempClean    []Command
	DNSFlush     []Command
	NetworkReset []Command

	Disk      Command
	ParseDisk func(out string) []Disk

	SystemFileCheck Command

	Shutdown Command
	Restart  Command
	Suspend  Command

	OpenApp  func(app string) Command
	CloseApp func(app string) Command
	// ProcessMissing reports whether CloseApp found nothing to close.
	ProcessMissing func(out string, err error) bool

	OpenURL func(url string) Command
}

// ProfileFor returns the profile for a configured platform. "auto" selects
// the profile of the running OS.
func ProfileFor(platform string) (*Profile, error) {
	if platform == "" || platform == config.PlatformAuto {
		platform = runtime.GOOS
	}
	switch platform {
	case config.PlatformWindows:
		return WindowsProfile(), nil
	case config.PlatformDarwin:
		return DarwinProfile(), nil
	case config.PlatformLinux, "freebsd", "openbsd", "netbsd":
		return LinuxProfile(), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
}

var (
	wmicLoad      = regexp.MustCompile(`LoadPercentage=(\d+)`)
	wmicMemTotal  = regexp.MustCompile(`TotalVisibleMemorySize=(\d+)`)
	wmicMemFree   = regexp.MustCompile(`FreePhysicalMemory=(\d+)`)
	topIdle       = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%?\s*id`)
	meminfoTotal  = regexp.MustCompile(`MemTotal:\s+(\d+)\s+kB`)
	meminfoAvail  = regexp.MustCompile(`MemAvailable:\s+(\d+)\s+kB`)
	darwinPageSz  = regexp.MustCompile(`page size of (\d+) bytes`)
	darwinFree    = regexp.MustCompile(`Pages (?:free|inactive|speculative):\s+(\d+)`)
	darwinMemSize = regexp.MustCompile(`(?m)^(\d+)$`)
)

func firstInt(re *regexp.Regexp, out string) (int64, bool) {
	m := re.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	return v, err == nil
}

// idleToLoad turns a top-style idle percentage into a load percentage.
func idleToLoad(out string) (string, bool) {
	m := topIdle.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	idle, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return "", false
	}
	return strconv.Itoa(int(100 - idle + 0.5)), true
}

// parseDF reads `df -kP` output, keeping device-backed volumes.
func parseDF(out string) []Disk {
	var disks []Disk
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		size, err1 := strconv.ParseInt(fields[1], 10, 64)
		avail, err2 := strconv.ParseInt(fields[3], 10, 64)
		if err1 != nil || err2 != nil || size == 0 {
			continue
		}
		disks = append(disks, Disk{
			Caption:   strings.Join(fields[5:], " "),
			FreeBytes: avail * 1024,
			SizeBytes: size * 1024,
		})
	}
	return disks
}

// parseWMICDisks reads `wmic logicaldisk get size,freespace,caption /value`.
// A record is complete once caption, free space and size have been seen.
func parseWMICDisks(out string) []Disk {
	var (
		disks               []Disk
		current             Disk
		hasCaption, hasFree bool
	)
	for _, line := range strings.Split(strings.ReplaceAll(out, "\r", ""), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Caption":
			current, hasCaption, hasFree = Disk{Caption: value}, true, false
		case "FreeSpace":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				current.FreeBytes, hasFree = v, true
			}
		case "Size":
			v, err := strconv.ParseInt(value, 10, 64)
			if err != nil || !hasCaption || !hasFree || v == 0 {
				continue
			}
			current.SizeBytes = v
			disks = append(disks, current)
			current, hasCaption, hasFree = Disk{}, false, false
		}
	}
	return disks
}

func processMissingByExit(out string, err error) bool {
	return ExitCode(err) == 1
}

// WindowsProfile uses the stock Windows tooling.
func WindowsProfile() *Profile {
	return &Profile{
		Name: config.PlatformWindows,

		CPU: Command{"wmic", "cpu", "get", "loadpercentage", "/value"},
		ParseCPU: func(out string) (string, bool) {
			m := wmicLoad.FindStringSubmatch(out)
			if m == nil {
				return "", false
			}
			return m[1], true
		},
		Memory: Command{"wmic", "OS", "get", "TotalVisibleMemorySize,FreePhysicalMemory", "/value"},
		ParseMemory: func(out string) (int64, int64, bool) {
			total, ok1 := firstInt(wmicMemTotal, out)
			free, ok2 := firstInt(wmicMemFree, out)
			return total, free, ok1 && ok2 && total > 0
		},

		Services:            []string{"Spooler", "Themes", "AudioSrv", "BITS", "Dhcp", "Dnscache"},
		RestartableServices: []string{"Spooler", "Themes", "AudioSrv", "BITS"},
		ServiceQuery:        func(s string) Command { return Command{"sc", "query", s} },
		ServiceRunning: func(out string, err error) bool {
			return strings.Contains(out, "RUNNING")
		},
		ServiceStop:  func(s string) Command { return Command{"net", "stop", s} },
		ServiceStart: func(s string) Command { return Command{"net", "start", s} },

		TempClean: []Command{
			{"cmd", "/C", `del /q /f /s "%temp%\*" 2>nul`},
			{"cmd", "/C", `del /q /f /s "C:\Windows\Temp\*" 2>nul`},
			{"cmd", "/C", `rd /s /q "%systemdrive%\$Recycle.bin" 2>nul`},
		},
		DNSFlush: []Command{{"ipconfig", "/flushdns"}},
		NetworkReset: []Command{
			{"netsh", "winsock", "reset"},
			{"ipconfig", "/release"},
			{"ipconfig", "/renew"},
		},

		Disk:      Command{"wmic", "logicaldisk", "get", "size,freespace,caption", "/value"},
		ParseDisk: parseWMICDisks,

		SystemFileCheck: Command{"sfc", "/scannow"},

		Shutdown: Command{"shutdown", "/s", "/t", "1"},
		Restart:  Command{"shutdown", "/r", "/t", "1"},
		Suspend:  Command{"rundll32.exe", "powrprof.dll,SetSuspendState", "0,1,0"},

		OpenApp:  func(app string) Command { return Command{"cmd", "/C", "start", "", app} },
		CloseApp: func(app string) Command { return Command{"taskkill", "/F", "/IM", app + ".exe"} },
		ProcessMissing: func(out string, err error) bool {
			return strings.Contains(out, "ERROR")
		},

		OpenURL: func(url string) Command { return Command{"rundll32", "url.dll,FileProtocolHandler", url} },
	}
}

// LinuxProfile uses procfs, systemd and NetworkManager.
func LinuxProfile() *Profile {
	return &Profile{
		Name: config.PlatformLinux,

		CPU:      Command{"top", "-b", "-n", "1"},
		ParseCPU: idleToLoad,
		Memory:   Command{"cat", "/proc/meminfo"},
		ParseMemory: func(out string) (int64, int64, bool) {
			total, ok1 := firstInt(meminfoTotal, out)
			free, ok2 := firstInt(meminfoAvail, out)
			return total, free, ok1 && ok2 && total > 0
		},

		Services:            []string{"cups", "NetworkManager", "systemd-resolved", "bluetooth", "cron"},
		RestartableServices: []string{"cups", "NetworkManager", "systemd-resolved", "bluetooth"},
		ServiceQuery:        func(s string) Command { return Command{"systemctl", "is-active", s} },
		ServiceRunning: func(out string, err error) bool {
			return err == nil && strings.TrimSpace(out) == "active"
		},
		ServiceStop:  func(s string) Command { return Command{"systemctl", "stop", s} },
		ServiceStart: func(s string) Command { return Command{"systemctl", "start", s} },

		TempClean: []Command{
			{"sh", "-c", `find "${TMPDIR:-/tmp}" -mindepth 1 -maxdepth 1 -user "$(id -u)" -mtime +0 -exec rm -rf {} +`},
			{"sh", "-c", `rm -rf "$HOME/.cache/thumbnails/"* "$HOME/.local/share/Trash/files/"*`},
		},
		DNSFlush: []Command{{"resolvectl", "flush-caches"}},
		NetworkReset: []Command{
			{"nmcli", "networking", "off"},
			{"nmcli", "networking", "on"},
		},

		Disk:      Command{"df", "-kP"},
		ParseDisk: parseDF,

		Shutdown: Command{"systemctl", "poweroff"},
		Restart:  Command{"systemctl", "reboot"},
		Suspend:  Command{"systemctl", "suspend"},

		// the app name is passed as $0 so it is never parsed by the shell
		OpenApp: func(app string) Command {
			return Command{"sh", "-c", `command -v "$0" >/dev/null && (nohup "$0" >/dev/null 2>&1 &)`, app}
		},
		CloseApp:       func(app string) Command { return Command{"pkill", "-x", app} },
		ProcessMissing: processMissingByExit,

		OpenURL: func(url string) Command { return Command{"xdg-open", url} },
	}
}

// DarwinProfile uses the macOS command line tools.
func DarwinProfile() *Profile {
	return &Profile{
		Name: config.PlatformDarwin,

		CPU:      Command{"top", "-l", "1", "-n", "0"},
		ParseCPU: idleToLoad,
		Memory:   Command{"sh", "-c", "sysctl -n hw.memsize; vm_stat"},
		ParseMemory: func(out string) (int64, int64, bool) {
			sizeBytes, ok1 := firstInt(darwinMemSize, out)
			pageSize, ok2 := firstInt(darwinPageSz, out)
			if !ok1 || !ok2 || sizeBytes == 0 {
				return 0, 0, false
			}
			var pages int64
			for _, m := range darwinFree.FindAllStringSubmatch(out, -1) {
				v, _ := strconv.ParseInt(m[1], 10, 64)
				pages += v
			}
			return sizeBytes / 1024, pages * pageSize / 1024, true
		},

		Services:            []string{"com.apple.mDNSResponder", "com.apple.cupsd", "com.apple.audio.coreaudiod"},
		RestartableServices: []string{"com.apple.cupsd", "com.apple.audio.coreaudiod"},
		ServiceQuery:        func(s string) Command { return Command{"launchctl", "list", s} },
		ServiceRunning: func(out string, err error) bool {
			return err == nil && strings.Contains(out, `"PID"`)
		},
		ServiceStop:  func(s string) Command { return Command{"launchctl", "stop", s} },
		ServiceStart: func(s string) Command { return Command{"launchctl", "start", s} },

		TempClean: []Command{
			{"sh", "-c", `find "${TMPDIR:-/tmp}" -mindepth 1 -maxdepth 1 -mtime +0 -exec rm -rf {} +`},
			{"sh", "-c", `rm -rf "$HOME/Library/Caches/"*`},
		},
		DNSFlush: []Command{
			{"dscacheutil", "-flushcache"},
			{"killall", "-HUP", "mDNSResponder"},
		},
		NetworkReset: []Command{
			{"networksetup", "-setairportpower", "en0", "off"},
			{"networksetup", "-setairportpower", "en0", "on"},
		},

		Disk:      Command{"df", "-kP"},
		ParseDisk: parseDF,

		Shutdown: Command{"osascript", "-e", `tell application "System Events" to shut down`},
		Restart:  Command{"osascript", "-e", `tell application "System Events" to restart`},
		Suspend:  Command{"pmset", "sleepnow"},

		OpenApp:        func(app string) Command { return Command{"open", "-a", app} },
		CloseApp:       func(app string) Command { return Command{"pkill", "-xi", app} },
		ProcessMissing: processMissingByExit,

		OpenURL: func(url string) Command { return Command{"open", url} },
	}
}
