package rsyncopts

import (
	"fmt"
	"strconv"
	"strings"
)

// Argument-taking behaviour for a poptOption, modeled on the subset of
// popt(3)'s POPT_ARG_* constants that rsync's option tables actually use.
const (
	// POPT_ARG_NONE options take no value. If Arg is non-nil, it is set to 1
	// when the option is present; a non-zero Val is returned from
	// poptGetNextOpt for the caller to handle, whether or not Arg is set.
	POPT_ARG_NONE = iota
	// POPT_ARG_STRING options consume the next token (or the text attached
	// via "--opt=value" / "-oVALUE") and store it into *Arg (a *string).
	POPT_ARG_STRING
	// POPT_ARG_INT is like POPT_ARG_STRING but parses the token as a decimal
	// integer and stores it into *Arg (a *int).
	POPT_ARG_INT
	// POPT_ARG_VAL options take no value; Val is stored into *Arg (a *int)
	// whenever the option is present. Used for --no-foo style negations,
	// where two options share one field with different Val constants.
	POPT_ARG_VAL
	// POPT_BIT_SET is like POPT_ARG_VAL but ORs Val into *Arg instead of
	// overwriting it, so unrelated bits set by other options are preserved.
	POPT_BIT_SET
)

// poptOption mirrors one row of a struct poptOption table from popt.h:
// long name, short name, argument kind, a pointer to store into (or nil),
// and either the value to store (POPT_ARG_VAL/POPT_BIT_SET) or the code
// poptGetNextOpt returns to the caller when Arg is nil (or always, if Val
// is non-zero).
type poptOption struct {
	LongName  string
	ShortName string
	ArgType   int
	Arg       interface{}
	Val       int
}

func (o poptOption) name() string {
	if o.LongName != "" {
		return "--" + o.LongName
	}
	return "-" + o.ShortName
}

func needsArg(o poptOption) bool {
	return o.ArgType == POPT_ARG_STRING || o.ArgType == POPT_ARG_INT
}

// POPT_ERROR_BADOPT is the only popt(3) error code this package
// distinguishes: an option string (long or short) that does not appear in
// any consulted table, or an option missing its required argument.
const POPT_ERROR_BADOPT = -10

// PoptError reports a command-line parsing failure, keyed by the offending
// option text so callers can special-case unknown flags (e.g. gokr-rsync
// prefixes its own extensions with "--gokr." and suggests --daemon when one
// of those is rejected outside daemon mode).
type PoptError struct {
	Errno      int
	Option     string
	Msg        string
	DaemonMode bool
}

func (e *PoptError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "unknown option"
	}
	return fmt.Sprintf("%s: %s", e.Option, msg)
}

// Context drives a single pass over a command-line, dispatching each
// recognized option against a table built by Options.table() (and friends)
// and collecting anything left over (source/destination paths) for the
// caller.
type Context struct {
	Options       *Options
	RemainingArgs []string

	table []poptOption
	args  []string

	pos         int
	shortRest   string
	optionsDone bool
	lastArg     string
}

// poptGetOptArg returns the argument text consumed by the most recently
// returned option, for options registered with a nil Arg (so the caller
// does its own parsing, e.g. --filter rules or --info categories).
func (pc *Context) poptGetOptArg() string {
	return pc.lastArg
}

// poptGetNextOpt advances past consecutive options that popt can apply on
// its own (storing into Arg, or OR-ing Val into a bit field) and returns as
// soon as it finds one the caller must handle: either because Arg is nil,
// or because Val is non-zero even though Arg was also set (some options
// want both auto-storage and a chance for the caller to do extra parsing,
// e.g. --max-size). It returns -1 once the argument list is exhausted.
func (pc *Context) poptGetNextOpt() (int, error) {
	for {
		if pc.shortRest != "" {
			opt, attached, hasAttached, err := pc.nextShort()
			if err != nil {
				return 0, err
			}
			code, handled, err := pc.applyOpt(opt, attached, hasAttached)
			if err != nil {
				return 0, err
			}
			if handled {
				return code, nil
			}
			continue
		}

		if pc.pos >= len(pc.args) {
			return -1, nil
		}
		tok := pc.args[pc.pos]

		if pc.optionsDone {
			pc.RemainingArgs = append(pc.RemainingArgs, tok)
			pc.pos++
			continue
		}

		if tok == "--" {
			pc.optionsDone = true
			pc.pos++
			continue
		}

		if strings.HasPrefix(tok, "--") && len(tok) > 2 {
			pc.pos++
			name, attached, hasAttached := splitLong(tok[2:])
			opt, ok := pc.lookupLong(name)
			if !ok {
				return 0, &PoptError{Errno: POPT_ERROR_BADOPT, Option: "--" + name}
			}
			code, handled, err := pc.applyOpt(opt, attached, hasAttached)
			if err != nil {
				return 0, err
			}
			if handled {
				return code, nil
			}
			continue
		}

		if len(tok) > 1 && tok[0] == '-' {
			pc.pos++
			pc.shortRest = tok[1:]
			continue
		}

		pc.RemainingArgs = append(pc.RemainingArgs, tok)
		pc.pos++
	}
}

// nextShort peels the next short option off pc.shortRest. Options that take
// an argument consume the rest of the bundle as an attached value (so
// "-f.cvsignore" behaves like "-f .cvsignore"); options that don't leave
// the remainder for the next iteration, so "-av" parses as "-a -v".
func (pc *Context) nextShort() (poptOption, string, bool, error) {
	name := pc.shortRest[:1]
	rest := pc.shortRest[1:]

	opt, ok := pc.lookupShort(name)
	if !ok {
		pc.shortRest = ""
		return poptOption{}, "", false, &PoptError{Errno: POPT_ERROR_BADOPT, Option: "-" + name}
	}
	if needsArg(opt) {
		pc.shortRest = ""
		return opt, rest, rest != "", nil
	}
	pc.shortRest = rest
	return opt, "", false, nil
}

// applyOpt stores the option's value (if any) and reports whether the
// caller should see this as a returned opt code (handled) or whether
// poptGetNextOpt should keep looping.
func (pc *Context) applyOpt(opt poptOption, attached string, hasAttached bool) (int, bool, error) {
	switch opt.ArgType {
	case POPT_ARG_NONE:
		if opt.Arg != nil {
			*(opt.Arg.(*int)) = 1
		}
		if opt.Val != 0 {
			return opt.Val, true, nil
		}
		return 0, false, nil

	case POPT_ARG_VAL:
		*(opt.Arg.(*int)) = opt.Val
		return 0, false, nil

	case POPT_BIT_SET:
		p := opt.Arg.(*int)
		*p |= opt.Val
		return 0, false, nil

	case POPT_ARG_STRING, POPT_ARG_INT:
		val := attached
		if !hasAttached {
			if pc.pos >= len(pc.args) {
				return 0, false, &PoptError{Errno: POPT_ERROR_BADOPT, Option: opt.name(), Msg: "argument required"}
			}
			val = pc.args[pc.pos]
			pc.pos++
		}
		pc.lastArg = val

		if opt.Arg != nil {
			switch p := opt.Arg.(type) {
			case *string:
				*p = val
			case *int:
				n, err := strconv.Atoi(val)
				if err != nil {
					return 0, false, &PoptError{Errno: POPT_ERROR_BADOPT, Option: opt.name(), Msg: fmt.Sprintf("invalid numeric argument %q", val)}
				}
				*p = n
			default:
				return 0, false, fmt.Errorf("popt: option %s has an Arg of unsupported type %T", opt.name(), opt.Arg)
			}
		}

		if opt.Val != 0 {
			return opt.Val, true, nil
		}
		return 0, false, nil

	default:
		return 0, false, fmt.Errorf("popt: option %s has unknown arg type %d", opt.name(), opt.ArgType)
	}
}

func (pc *Context) lookupLong(name string) (poptOption, bool) {
	for _, o := range pc.table {
		if o.LongName != "" && o.LongName == name {
			return o, true
		}
	}
	return poptOption{}, false
}

func (pc *Context) lookupShort(name string) (poptOption, bool) {
	for _, o := range pc.table {
		if o.ShortName != "" && o.ShortName == name {
			return o, true
		}
	}
	return poptOption{}, false
}

func splitLong(s string) (name, attached string, hasAttached bool) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}
