package darksky

import (
	"sort"
	"strings"
)

// Query parameter names recognized by the API.
const (
	ParamExclude  = "exclude"
	ParamExtend   = "extend"
	ParamLanguage = "lang"
	ParamUnits    = "units"
)

// Options holds the optional query parameters of a forecast request.
//
// Options is a value type: every builder method returns an updated copy, so
// calls can be chained starting from the zero value:
//
//	opts := darksky.Options{}.
//		Exclude(darksky.BlockMinutely, darksky.BlockFlags).
//		ExtendHourly().
//		Unit(darksky.UnitSI)
//
// Calling a method again replaces the previous value for that parameter.
type Options struct {
	exclude      []Block
	hasExclude   bool
	extendHourly bool
	language     Language
	unit         Unit

	// extra holds parameters set through Set that have no typed builder.
	extra map[string]string
}

// Exclude sets the datablocks the API should leave out of the response.
// It replaces any previously excluded blocks. Calling it with no blocks still
// sends the parameter, with an empty value.
func (o Options) Exclude(blocks ...Block) Options {
	o.exclude = append([]Block(nil), blocks...)
	o.hasExclude = true
	delete(o.cloneExtra(), ParamExclude)
	return o
}

// ExtendHourly extends the hourly block to seven days instead of two.
func (o Options) ExtendHourly() Options {
	o.extendHourly = true
	delete(o.cloneExtra(), ParamExtend)
	return o
}

// Language sets the language of summary texts.
func (o Options) Language(lang Language) Options {
	o.language = lang
	delete(o.cloneExtra(), ParamLanguage)
	return o
}

// Unit sets the unit system of the response.
func (o Options) Unit(unit Unit) Options {
	o.unit = unit
	delete(o.cloneExtra(), ParamUnits)
	return o
}

// Set stores an arbitrary query parameter. It exists for parameters this
// package does not model; setting a recognized name overrides the value the
// typed builder stored for it.
func (o Options) Set(key, value string) Options {
	extra := o.cloneExtra()
	switch key {
	case ParamExclude:
		o.exclude, o.hasExclude = nil, false
	case ParamExtend:
		o.extendHourly = false
	case ParamLanguage:
		o.language = ""
	case ParamUnits:
		o.unit = ""
	}
	extra[key] = value
	o.extra = extra
	return o
}

// Get returns the wire value that will be sent for key.
func (o Options) Get(key string) (string, bool) {
	for _, p := range o.Params() {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Len returns the number of query parameters the options produce.
func (o Options) Len() int {
	return len(o.Params())
}

// Param is a single query parameter in wire form.
type Param struct {
	Key   string
	Value string

	// Raw reports whether Value is a known wire token that needs no escaping.
	Raw bool
}

// Params returns the parameters in the order they are written to the URL:
// exclude, extend, lang, units, then any extra parameters sorted by name.
func (o Options) Params() []Param {
	params := make([]Param, 0, 4+len(o.extra))

	if o.hasExclude {
		names := make([]string, len(o.exclude))
		for i, b := range o.exclude {
			names[i] = string(b)
		}
		params = append(params, Param{Key: ParamExclude, Value: strings.Join(names, ","), Raw: true})
	}
	if o.extendHourly {
		params = append(params, Param{Key: ParamExtend, Value: "hourly", Raw: true})
	}
	if o.language != "" {
		params = append(params, Param{Key: ParamLanguage, Value: string(o.language), Raw: true})
	}
	if o.unit != "" {
		params = append(params, Param{Key: ParamUnits, Value: string(o.unit), Raw: true})
	}

	keys := make([]string, 0, len(o.extra))
	for k := range o.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params = append(params, Param{Key: k, Value: o.extra[k]})
	}

	return params
}

// cloneExtra replaces o.extra with a private copy and returns it.
// Options values handed out earlier keep the map they had.
func (o *Options) cloneExtra() map[string]string {
	extra := make(map[string]string, len(o.extra)+1)
	for k, v := range o.extra {
		extra[k] = v
	}
	o.extra = extra
	return extra
}
