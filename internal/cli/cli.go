// Package cli parses lecturenote command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRecord    Command = "record"
	CommandPause     Command = "pause"
	CommandResume    Command = "resume"
	CommandStop      Command = "stop"
	CommandReset     Command = "reset"
	CommandStatus    Command = "status"
	CommandAuthorize Command = "authorize"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandCourses   Command = "courses"
	CommandCourse    Command = "course"
	CommandLectures  Command = "lectures"
	CommandLecture   Command = "lecture"
	CommandTags      Command = "tags"
	CommandTag       Command = "tag"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

// argParsers holds the per-command argument parser. Commands mapped to nil
// take no arguments.
var argParsers = map[Command]func(*Parsed, []string) error{
	CommandRecord:    parseRecord,
	CommandPause:     nil,
	CommandResume:    nil,
	CommandStop:      nil,
	CommandReset:     nil,
	CommandStatus:    nil,
	CommandAuthorize: parseAuthorize,
	CommandDevices:   nil,
	CommandDoctor:    nil,
	CommandCourses:   nil,
	CommandCourse:    parseCourse,
	CommandLectures:  parseLectures,
	CommandLecture:   parseLecture,
	CommandTags:      nil,
	CommandTag:       parseTag,
	CommandVersion:   nil,
	CommandHelp:      nil,
}

// RecordOptions are the record command flags.
type RecordOptions struct {
	CourseID string
	Title    string
	Summary  string
	TagIDs   []string
	NoTUI    bool
	Copy     bool
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Verbose    bool
	ShowHelp   bool

	// Action is the sub-action for course, lecture, and tag ("add", "rm").
	Action string
	// Args are the positional arguments after the command and action.
	Args   []string
	Record RecordOptions
	Revoke bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			parse, ok := argParsers[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			rest := args[i+1:]
			if parse == nil {
				if len(rest) > 0 {
					return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
				}
				return parsed, nil
			}
			if err := parse(&parsed, rest); err != nil {
				return Parsed{}, fmt.Errorf("%s: %w", cmd, err)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func parseRecord(parsed *Parsed, args []string) error {
	opts := &parsed.Record
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--no-tui":
			opts.NoTUI = true
			continue
		case "--copy":
			opts.Copy = true
			continue
		case "--course", "--title", "--summary", "--tag":
		default:
			return fmt.Errorf("unexpected argument %q", arg)
		}

		i++
		if i >= len(args) {
			return fmt.Errorf("%s requires a value", arg)
		}
		value := args[i]
		switch arg {
		case "--course":
			opts.CourseID = strings.TrimSpace(value)
		case "--title":
			opts.Title = value
		case "--summary":
			opts.Summary = value
		case "--tag":
			opts.TagIDs = append(opts.TagIDs, strings.TrimSpace(value))
		}
	}
	if opts.CourseID == "" && opts.Title != "" {
		return errors.New("--title requires --course")
	}
	return nil
}

func parseAuthorize(parsed *Parsed, args []string) error {
	for _, arg := range args {
		if arg != "--revoke" {
			return fmt.Errorf("unexpected argument %q", arg)
		}
		parsed.Revoke = true
	}
	return nil
}

func parseCourse(parsed *Parsed, args []string) error {
	return parseAction(parsed, args, map[string][2]int{
		"add": {1, 4},
		"rm":  {1, 1},
	})
}

func parseLecture(parsed *Parsed, args []string) error {
	return parseAction(parsed, args, map[string][2]int{
		"rm": {1, 1},
	})
}

func parseTag(parsed *Parsed, args []string) error {
	return parseAction(parsed, args, map[string][2]int{
		"add": {1, 2},
		"rm":  {1, 1},
	})
}

func parseLectures(parsed *Parsed, args []string) error {
	if len(args) != 1 {
		return errors.New("expected exactly one COURSE_ID")
	}
	parsed.Args = args
	return nil
}

// parseAction reads ACTION ARGS... where arity bounds the positional count.
func parseAction(parsed *Parsed, args []string, arity map[string][2]int) error {
	if len(args) == 0 {
		return errors.New("missing action")
	}
	bounds, ok := arity[args[0]]
	if !ok {
		return fmt.Errorf("unknown action %q", args[0])
	}
	rest := args[1:]
	if len(rest) < bounds[0] || len(rest) > bounds[1] {
		return fmt.Errorf("%s expects %d to %d arguments, got %d", args[0], bounds[0], bounds[1], len(rest))
	}
	parsed.Action = args[0]
	parsed.Args = rest
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--verbose] <command> [args]

Recording:
  record --course ID [--title T] [--summary S] [--tag ID]... [--no-tui] [--copy]
                     Record a lecture; saves it on finish when --title is set
  pause              Pause the running recording
  resume             Resume the running recording
  stop               Finish the running recording
  reset              Discard the running recording's transcript
  status             Print the running recording's state and transcript

Library:
  courses                                List courses
  course add NAME [CODE] [COLOR] [ICON]  Create a course
  course rm ID                           Delete a course and its lectures
  lectures COURSE_ID                     List a course's lectures
  lecture rm ID                          Delete a lecture
  tags                                   List tags
  tag add NAME [COLOR]                   Create a tag
  tag rm ID                              Delete a tag

Setup:
  authorize [--revoke]  Grant or revoke speech recognition consent
  devices               List available input devices
  doctor                Run configuration and environment checks
  version               Print version information
  help                  Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/lecturenote/config.jsonc)
  -v, --verbose   Debug-level logging
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
