package security

import (
	"path"
	"regexp"
	"strings"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// Classifier implements ports.CommandClassifier.
//
// Whole-text signatures are matched on the full command first. The command is
// then split into clauses on shell control operators and every clause is rated
// on its leading executable, looking through wrappers such as sudo or timeout
// and into scripts handed to sh -c or ssh. The result is the most dangerous
// rating found, so one bad clause anywhere in a chain rates the whole chain.
// All patterns are RE2.
type Classifier struct {
	rules []compiledRule
}

// NewClassifier builds a classifier with optional extra danger rules. Extra
// rules can only raise a rating.
func NewClassifier(rules []DangerRule) (*Classifier, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Classifier{rules: compiled}, nil
}

// commandStart matches where an executable name can begin inside command text.
const commandStart = `(?:^|[\s;&|(){}'"` + "`" + `/\\])`

var (
	forkBombRe       = regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`)
	deviceRedirectRe = regexp.MustCompile(`>\s*/dev/(?:sd[a-z]|hd[a-z]|vd[a-z]|xvd[a-z]|nvme\d|mmcblk\d|disk\d|rdisk\d|mapper/)`)
	ddDeviceRe       = regexp.MustCompile(`\bdd\b[^;&|]*?\bof=['"]?(/dev/[^\s'";&|)]+)`)
	criticalTextRes  = []*regexp.Regexp{
		// recursive rm aimed at / or a top-level system directory
		regexp.MustCompile(commandStart + `rm\s+(?:[^\s;&|]+\s+)*?(?:-[a-zA-Z]*[rR][a-zA-Z]*|--recursive)\s+(?:[^\s;&|]+\s+)*?['"]?/(?:\*|(?:bin|boot|etc|home|lib|lib64|opt|root|sbin|usr|var)/?\*?)?['"]?(?:[\s;&|)` + "`" + `]|$)`),
		regexp.MustCompile(commandStart + `rm\s[^;&|]*--no-preserve-root`),
		regexp.MustCompile(`(?i)\bmkfs\b`),
		regexp.MustCompile(`(?i)\b(?:fdisk|sfdisk|cfdisk|parted|gdisk|sgdisk|wipefs|flashrom|diskpart)\b`),
		regexp.MustCompile(`(?i)(?:^|[\s;&|(])format\s+['"]?[a-z]:(?:[\s/'"]|$)`),
		regexp.MustCompile(`(?i)\b(?:curl|wget|nc|ncat|scp)\b.*(?:/etc/shadow|\.ssh/id_)`),
		regexp.MustCompile(`(?i)\bsetenforce\s+0\b`),
		regexp.MustCompile(`(?i)\bufw\s+disable\b`),
		regexp.MustCompile(`(?i)\biptables\s+(?:-F|--flush)\b`),
		regexp.MustCompile(`(?i)\bsystemctl\s+(?:stop|disable)\s+\S*firewall`),
		regexp.MustCompile(`(?i)\bbcdedit\s+/delete`),
		regexp.MustCompile(`>\s*/proc/sys/`),
	}
	sensitivePathRe = regexp.MustCompile(`(?:^|[\s=:'"<>(])(?:/etc|/boot|/root|/sys|/proc/sys|~/\.ssh)(?:/|\s|$|['")])`)
	serviceCtlRe    = regexp.MustCompile(`\b(?:systemctl|service|launchctl)\b`)
	redirectRe      = regexp.MustCompile(`>>?\s*([^\s&|;<>]+)`)
	driveLetterRe   = regexp.MustCompile(`(?i)^[a-z]:$`)
)

var (
	// wrappers run their arguments as a command.
	wrappers = set("sudo", "doas", "su", "pkexec", "env", "nohup", "nice", "ionice", "time", "timeout", "xargs", "exec", "command", "builtin", "stdbuf", "chroot", "runas")
	// elevators raise privileges on their own.
	elevators = set("sudo", "doas", "su", "pkexec", "runas", "chroot")
	// wrapperOptionArgs lists the wrapper options whose value is the next token.
	wrapperOptionArgs = map[string]map[string]bool{
		"sudo":    set("-u", "-g", "-h", "-p", "-C", "-D", "-r", "-t", "-T", "-U", "--user", "--group", "--host", "--prompt", "--close-from", "--chdir", "--role", "--type", "--command-timeout", "--other-user"),
		"doas":    set("-u", "-C"),
		"su":      set("-g", "-G", "-s", "--group", "--supp-group", "--shell"),
		"pkexec":  set("--user"),
		"env":     set("-u", "-C", "--unset", "--chdir"),
		"nice":    set("-n", "--adjustment"),
		"ionice":  set("-c", "-n", "-p", "-P", "-u", "--class", "--classdata"),
		"timeout": set("-s", "-k", "--signal", "--kill-after"),
		"xargs":   set("-I", "-n", "-L", "-P", "-d", "-E", "-s", "-a", "--max-args", "--max-procs", "--delimiter", "--arg-file", "--max-lines", "--max-chars"),
		"stdbuf":  set("-i", "-o", "-e", "--input", "--output", "--error"),
		"time":    set("-f", "-o", "--format", "--output"),
		"exec":    set("-a"),
		"chroot":  set("--userspec", "--groups"),
	}
	// wrapperOperands counts the positional arguments a wrapper takes before
	// the wrapped command: the timeout duration, the chroot directory, the su user.
	wrapperOperands = map[string]int{"timeout": 1, "chroot": 1, "su": 1}

	shells        = set("sh", "bash", "zsh", "dash", "ksh", "mksh", "ash", "fish", "csh", "tcsh")
	sshOptionArgs = set("-B", "-b", "-c", "-D", "-E", "-e", "-F", "-I", "-i", "-J", "-L", "-l", "-m", "-O", "-o", "-p", "-Q", "-R", "-S", "-W", "-w")

	partitionTools = set("fdisk", "sfdisk", "cfdisk", "parted", "gdisk", "sgdisk", "wipefs", "flashrom", "diskpart")

	highTools = set(
		"rm", "rmdir", "shred", "unlink", "del", "rd", "truncate",
		"chmod", "chown", "chgrp", "chattr", "setfacl",
		"dd", "kill", "killall", "pkill",
		"shutdown", "reboot", "halt", "poweroff", "init",
		"useradd", "userdel", "usermod", "groupadd", "groupdel", "passwd", "visudo",
		"mount", "umount", "iptables", "ip6tables", "nft", "ufw", "firewall-cmd",
		"crontab", "insmod", "rmmod", "modprobe", "sysctl",
		"systemctl", "service", "launchctl",
	)
	mutators        = set("mv", "cp", "mkdir", "touch", "ln", "tee", "rsync", "install", "patch", "tar", "unzip", "sed", "curl", "wget")
	packageManagers = set(
		"npm", "npx", "yarn", "pnpm", "bun", "pip", "pip3", "pipx", "uv", "poetry", "conda",
		"cargo", "go", "gem", "bundle", "composer", "apt", "apt-get", "dpkg", "dnf", "yum", "rpm",
		"pacman", "zypper", "apk", "brew", "port", "snap", "flatpak", "choco", "winget", "scoop", "make",
	)
	gitMutations = set("add", "commit", "push", "pull", "reset", "rebase", "merge", "checkout", "switch", "restore", "clean", "rm", "mv", "stash", "cherry-pick", "revert", "tag", "branch", "am", "apply", "init", "clone")
	lowTools     = set("echo", "printf", "date", "whoami", "id", "hostname", "uname", "uptime", "groups", "true", "false", "sleep", "clear", "cd")
	readOnly     = set(
		"ls", "dir", "cat", "head", "tail", "less", "more", "grep", "egrep", "fgrep", "rg",
		"find", "locate", "whereis", "which", "type", "file", "stat", "pwd", "wc",
		"tree", "du", "df", "diff", "ps", "free", "lsblk", "env", "printenv",
	)
	rootTargets = set("/", "/*", "/bin", "/boot", "/etc", "/home", "/lib", "/lib64", "/opt", "/root", "/sbin", "/usr", "/var")
	nullSinks   = set("/dev/null", "/dev/stdout", "/dev/stderr", "/dev/tty", "nul", "NUL")
)

// Classify implements ports.CommandClassifier.
func (c *Classifier) Classify(command string) domain.OperationRisk {
	text := strings.TrimSpace(command)
	if text == "" {
		return domain.RiskMedium
	}
	risk := classifyScript(text, 0)
	if risk == domain.RiskCritical {
		return risk
	}
	if sensitivePathRe.MatchString(text) || serviceCtlRe.MatchString(text) {
		risk = domain.MaxRisk(risk, domain.RiskHigh)
	}
	for _, rule := range c.rules {
		if rule.level > risk && rule.re.MatchString(text) {
			risk = rule.level
		}
	}
	return risk
}

// classifyScript rates shell text: a top-level command or a script handed to
// a shell or ssh.
func classifyScript(text string, depth int) domain.OperationRisk {
	if criticalText(text) {
		return domain.RiskCritical
	}
	risk := domain.RiskReadOnly
	for _, clause := range splitClauses(text) {
		risk = domain.MaxRisk(risk, classifyClause(clause, depth))
		if risk == domain.RiskCritical {
			return risk
		}
	}
	return risk
}

func criticalText(text string) bool {
	if forkBombRe.MatchString(text) || deviceRedirectRe.MatchString(text) {
		return true
	}
	for _, re := range criticalTextRes {
		if re.MatchString(text) {
			return true
		}
	}
	for _, m := range ddDeviceRe.FindAllStringSubmatch(text, -1) {
		if !nullSinks[m[1]] {
			return true
		}
	}
	return false
}

// splitClauses cuts on ; newline && || | & ` $( ( and ). Quotes are not
// honoured, so separators inside quotes also split.
func splitClauses(text string) []string {
	var clauses []string
	start := 0
	flush := func(end int) {
		if clause := strings.TrimSpace(text[start:end]); clause != "" {
			clauses = append(clauses, clause)
		}
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case ';', '\n', '|', '`', '(', ')':
			flush(i)
			start = i + 1
		case '&':
			// 2>&1 and &> are redirections, not separators.
			if (i > 0 && text[i-1] == '>') || (i+1 < len(text) && text[i+1] == '>') {
				continue
			}
			flush(i)
			start = i + 1
		case '$':
			if i+1 < len(text) && text[i+1] == '(' {
				flush(i)
				start = i + 2
				i++
			}
		}
	}
	flush(len(text))
	return clauses
}

func classifyClause(clause string, depth int) domain.OperationRisk {
	risk := domain.RiskReadOnly
	if redirectTarget(clause) != "" {
		risk = domain.RiskMedium
	}
	return domain.MaxRisk(risk, classifyTokens(strings.Fields(clause), depth))
}

func classifyTokens(tokens []string, depth int) domain.OperationRisk {
	tokens = skipAssignments(tokens)
	if len(tokens) == 0 || depth > 4 {
		return domain.RiskReadOnly
	}
	name := executable(tokens[0])
	args := tokens[1:]

	if wrappers[name] {
		risk := domain.RiskLow
		if elevators[name] {
			risk = domain.RiskHigh
		}
		if script, ok := embeddedScript(name, args); ok {
			return domain.MaxRisk(risk, classifyScript(script, depth+1))
		}
		return domain.MaxRisk(risk, classifyTokens(wrappedCommand(name, args), depth+1))
	}
	if script, ok := embeddedScript(name, args); ok {
		return domain.MaxRisk(domain.RiskMedium, classifyScript(script, depth+1))
	}

	switch {
	case strings.HasPrefix(name, "mkfs") || partitionTools[name]:
		return domain.RiskCritical
	case name == "format" && len(args) > 0 && driveLetterRe.MatchString(args[0]):
		return domain.RiskCritical
	case name == "rm" && rootDeletion(args):
		return domain.RiskCritical
	case name == "dd" && writesDevice(args):
		return domain.RiskCritical
	case name == "find":
		return classifyFind(args, depth)
	case highTools[name]:
		return domain.RiskHigh
	case mutators[name] || packageManagers[name]:
		return domain.RiskMedium
	case name == "git":
		return classifyGit(args)
	case lowTools[name]:
		return domain.RiskLow
	case readOnly[name]:
		return domain.RiskReadOnly
	default:
		return domain.RiskMedium
	}
}

func classifyFind(args []string, depth int) domain.OperationRisk {
	for i, arg := range args {
		switch arg {
		case "-delete":
			return domain.RiskHigh
		case "-exec", "-execdir", "-ok", "-okdir":
			return domain.MaxRisk(domain.RiskMedium, classifyTokens(args[i+1:], depth+1))
		}
	}
	return domain.RiskReadOnly
}

func classifyGit(args []string) domain.OperationRisk {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-C" || arg == "-c" {
			i++
			continue
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if gitMutations[arg] {
			return domain.RiskMedium
		}
		return domain.RiskLow
	}
	return domain.RiskLow
}

func rootDeletion(args []string) bool {
	recursive := false
	var targets []string
	for _, arg := range args {
		switch {
		case arg == "--no-preserve-root":
			return true
		case arg == "--recursive":
			recursive = true
		case strings.HasPrefix(arg, "--"):
		case strings.HasPrefix(arg, "-"):
			if strings.ContainsAny(arg, "rR") {
				recursive = true
			}
		default:
			targets = append(targets, arg)
		}
	}
	if !recursive {
		return false
	}
	for _, target := range targets {
		target = strings.Trim(target, `"'`)
		if target != "/" {
			target = strings.TrimSuffix(target, "/")
		}
		if rootTargets[target] {
			return true
		}
	}
	return false
}

func writesDevice(args []string) bool {
	for _, arg := range args {
		if strings.HasPrefix(arg, "of=/dev/") && !nullSinks[strings.TrimPrefix(arg, "of=")] {
			return true
		}
	}
	return false
}

func redirectTarget(clause string) string {
	for _, match := range redirectRe.FindAllStringSubmatch(clause, -1) {
		if target := match[1]; !nullSinks[target] {
			return target
		}
	}
	return ""
}

// executable returns the base name of the leading token, lowercased, so that
// /bin/rm and rm.exe rate like rm.
func executable(token string) string {
	token = strings.Trim(token, `{"'\`)
	token = strings.ReplaceAll(token, `\`, "/")
	name := strings.ToLower(path.Base(token))
	return strings.TrimSuffix(name, ".exe")
}

func skipAssignments(tokens []string) []string {
	for len(tokens) > 0 && isAssignment(tokens[0]) {
		tokens = tokens[1:]
	}
	return tokens
}

func isAssignment(token string) bool {
	eq := strings.IndexByte(token, '=')
	if eq <= 0 {
		return false
	}
	for i, r := range token[:eq] {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

// wrappedCommand drops a wrapper's options, their values and its leading
// operands, leaving the command it runs.
func wrappedCommand(name string, args []string) []string {
	takesValue := wrapperOptionArgs[name]
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		flag := args[0]
		args = args[1:]
		if flag == "--" {
			break
		}
		if takesValue[flag] && len(args) > 0 {
			args = args[1:]
		}
	}
	for n := wrapperOperands[name]; n > 0 && len(args) > 0; n-- {
		args = args[1:]
	}
	return args
}

// embeddedScript returns the command text passed to a shell with -c, to su
// with -c, to cmd with /c or to ssh after the host.
func embeddedScript(name string, args []string) (string, bool) {
	switch {
	case name == "ssh":
		return remoteCommand(args)
	case shells[name], name == "su", name == "cmd", name == "pwsh", name == "powershell":
	default:
		return "", false
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if scriptFlag(name, arg) {
			if i+1 == len(args) {
				return "", false
			}
			return unquote(strings.Join(args[i+1:], " ")), true
		}
		if shells[name] {
			if arg == "-o" || arg == "+o" {
				i++
				continue
			}
			if !strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "+") {
				return "", false
			}
		}
	}
	return "", false
}

func scriptFlag(name, arg string) bool {
	switch {
	case shells[name]:
		// -c alone or inside a cluster such as -lc or -ec
		return len(arg) > 1 && arg[0] == '-' && arg[1] != '-' && strings.ContainsRune(arg, 'c')
	case name == "su":
		return arg == "-c" || arg == "--command"
	case name == "cmd":
		return strings.EqualFold(arg, "/c") || strings.EqualFold(arg, "/k")
	default:
		return strings.EqualFold(arg, "-c") || strings.EqualFold(arg, "-command")
	}
}

func remoteCommand(args []string) (string, bool) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case sshOptionArgs[arg]:
			i++
		case strings.HasPrefix(arg, "-"):
		default:
			if i+1 == len(args) {
				return "", false
			}
			return unquote(strings.Join(args[i+1:], " ")), true
		}
	}
	return "", false
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return strings.Trim(s, `"'`)
}

func set(values ...string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

var _ ports.CommandClassifier = (*Classifier)(nil)
