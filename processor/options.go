package processor

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"mvdan.cc/sh/v3/fileutil"
	"mvdan.cc/sh/v3/syntax"

	"github.com/un-ts/sh-syntax/ast"
	"github.com/un-ts/sh-syntax/internal/abi"
)

// Variant is the shell language variant accepted by the parser.
type Variant int

const (
	VariantBash Variant = iota
	VariantPOSIX
	VariantMirBSDKorn
	VariantBats
	// VariantAuto picks a variant from the file extension, then the
	// shebang, falling back to Bash. It is resolved before the engine runs.
	VariantAuto
)

func (v Variant) String() string {
	switch v {
	case VariantBash:
		return "bash"
	case VariantPOSIX:
		return "posix"
	case VariantMirBSDKorn:
		return "mksh"
	case VariantBats:
		return "bats"
	case VariantAuto:
		return "auto"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// UnmarshalText accepts the names understood by shfmt's -ln flag.
func (v *Variant) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	if name == "auto" {
		*v = VariantAuto
		return nil
	}
	var lang syntax.LangVariant
	if err := lang.Set(name); err != nil {
		return &UsageError{Option: "variant", Reason: err.Error()}
	}
	parsed, ok := fromLang(lang)
	if !ok {
		return &UsageError{Option: "variant", Reason: fmt.Sprintf("unsupported variant %q", text)}
	}
	*v = parsed
	return nil
}

func fromLang(lang syntax.LangVariant) (Variant, bool) {
	switch lang {
	case syntax.LangBash:
		return VariantBash, true
	case syntax.LangPOSIX:
		return VariantPOSIX, true
	case syntax.LangMirBSDKorn:
		return VariantMirBSDKorn, true
	case syntax.LangBats:
		return VariantBats, true
	default:
		return 0, false
	}
}

// maxStopAt is the longest stop word the lexer accepts.
const maxStopAt = 4

// Options configures a single Parse or Print call. A nil *Options, or a
// nil field, means the default for that field, so a partly filled Options
// keeps the defaults of everything it leaves out.
type Options struct {
	// Filepath is used in error messages and for Auto variant detection.
	Filepath string `mapstructure:"filepath"`
	// OriginalText is the source a syntax tree was parsed from. It is
	// required by PrintFile.
	OriginalText *string `mapstructure:"original_text"`

	// KeepComments defaults to true.
	KeepComments  *bool   `mapstructure:"keep_comments"`
	Variant       Variant `mapstructure:"variant"`
	StopAt        string  `mapstructure:"stop_at"`
	RecoverErrors int     `mapstructure:"recover_errors"`

	// Indent is the number of spaces per level, 0 for tabs. When nil it
	// is derived from UseTabs and TabWidth.
	Indent  *uint `mapstructure:"indent"`
	UseTabs bool  `mapstructure:"use_tabs"`
	// TabWidth defaults to 2.
	TabWidth *uint `mapstructure:"tab_width"`
	// BinaryNextLine, SwitchCaseIndent and SpaceRedirects default to true.
	BinaryNextLine   *bool `mapstructure:"binary_next_line"`
	SwitchCaseIndent *bool `mapstructure:"switch_case_indent"`
	SpaceRedirects   *bool `mapstructure:"space_redirects"`
	// Deprecated: KeepPadding is best-effort in the engine and may be
	// ignored.
	KeepPadding      bool `mapstructure:"keep_padding"`
	Minify           bool `mapstructure:"minify"`
	SingleLine       bool `mapstructure:"single_line"`
	FunctionNextLine bool `mapstructure:"function_next_line"`
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Uint returns a pointer to v.
func Uint(v uint) *uint { return &v }

const defaultTabWidth = 2

// DefaultOptions returns the options used when none are given, with every
// defaulted field set explicitly.
func DefaultOptions() Options {
	var o Options
	o.applyDefaults()
	return o
}

// applyDefaults fills the nil fields.
func (o *Options) applyDefaults() {
	for _, f := range []**bool{&o.KeepComments, &o.BinaryNextLine, &o.SwitchCaseIndent, &o.SpaceRedirects} {
		if *f == nil {
			*f = Bool(true)
		}
	}
	if o.TabWidth == nil {
		o.TabWidth = Uint(defaultTabWidth)
	}
}

// input is the value being processed: source text, or a syntax tree to
// print. Exactly one field is set.
type input struct {
	text *string
	file *ast.File
}

func textInput(s string) input { return input{text: &s} }

func fileInput(f *ast.File) input { return input{file: f} }

// encoded is a validated call, ready to be copied into guest memory.
type encoded struct {
	filepath string
	text     string
	stopAt   string
	// args carries the scalar arguments; pointers are filled in by the arena.
	args abi.Args
}

// encode applies defaults, validates opts and builds the call arguments.
// It never touches the engine.
func encode(in input, print bool, opts *Options) (*encoded, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.applyDefaults()

	if err := o.validate(); err != nil {
		return nil, err
	}

	var text string
	switch {
	case in.file != nil:
		if o.OriginalText == nil {
			return nil, &UsageError{Option: "original_text", Reason: "required when printing a syntax tree"}
		}
		text = *o.OriginalText
		if o.Filepath == "" {
			o.Filepath = in.file.Name
		}
		print = true
	case in.text != nil:
		text = *in.text
	default:
		return nil, &UsageError{Option: "input", Reason: "no text or syntax tree given"}
	}

	variant := o.Variant
	if variant == VariantAuto {
		variant = detectVariant(o.Filepath, text)
	}

	return &encoded{
		filepath: o.Filepath,
		text:     text,
		stopAt:   o.StopAt,
		args: abi.Args{
			Print:            print,
			KeepComments:     *o.KeepComments,
			Variant:          uint8(variant),
			RecoverErrors:    uint32(o.RecoverErrors),
			Indent:           uint32(o.indent()),
			BinaryNextLine:   *o.BinaryNextLine,
			SwitchCaseIndent: *o.SwitchCaseIndent,
			SpaceRedirects:   *o.SpaceRedirects,
			KeepPadding:      o.KeepPadding,
			Minify:           o.Minify,
			SingleLine:       o.SingleLine,
			FunctionNextLine: o.FunctionNextLine,
		},
	}, nil
}

func (o *Options) indent() uint {
	switch {
	case o.Indent != nil:
		return *o.Indent
	case o.UseTabs:
		return 0
	case o.TabWidth != nil:
		return *o.TabWidth
	default:
		return defaultTabWidth
	}
}

func (o *Options) validate() error {
	if o.Variant < VariantBash || o.Variant > VariantAuto {
		return &UsageError{Option: "variant", Reason: fmt.Sprintf("unknown variant %d", int(o.Variant))}
	}
	if len(o.StopAt) > maxStopAt {
		return &UsageError{Option: "stop_at", Reason: fmt.Sprintf("%q is longer than %d bytes", o.StopAt, maxStopAt)}
	}
	if strings.IndexFunc(o.StopAt, unicode.IsSpace) >= 0 {
		return &UsageError{Option: "stop_at", Reason: fmt.Sprintf("%q contains whitespace", o.StopAt)}
	}
	if o.RecoverErrors < 0 {
		return &UsageError{Option: "recover_errors", Reason: "must not be negative"}
	}
	if ind := o.indent(); uint64(ind) > uint64(^uint32(0)) {
		return &UsageError{Option: "indent", Reason: fmt.Sprintf("%d is too large", ind)}
	}
	return nil
}

var variantByExt = map[string]Variant{
	".bash": VariantBash,
	".mksh": VariantMirBSDKorn,
	".bats": VariantBats,
}

// detectVariant resolves VariantAuto for a file.
func detectVariant(path, text string) Variant {
	if v, ok := variantByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return v
	}
	if name := fileutil.Shebang([]byte(text)); name != "" {
		var lang syntax.LangVariant
		if err := lang.Set(name); err == nil {
			if v, ok := fromLang(lang); ok {
				return v
			}
		}
	}
	return VariantBash
}
