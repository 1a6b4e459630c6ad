package classify

// DefaultFunctionRules are the rejections a function may legitimately give
// a placeholder argument. A match means the function was reached and
// validated its input.
func DefaultFunctionRules() []Rule {
	return []Rule{
		{Name: "arg_is_not_a", Pattern: `arg(ument)? \s is \s not \s a`},
		{Name: "arg_isnt_a", Pattern: `arg(ument)? \s isn't \s a`},
		{Name: "arg_must_be", Pattern: `arg(ument)? \s must \s be`},
		{Name: "called_only", Pattern: `should \s only \s be \s called`},
		{Name: "input_must_be", Pattern: `input \s must \s be`},
		{Name: "input_geometry", Pattern: `input \s geometry`},
		{Name: "input_geometries_must_have", Pattern: `input \s geometries \s must \s have`},
		{Name: "unsupported_geometry", Pattern: `unsupported \s geometry`},
		{Name: "bad_format", Pattern: `bad \s format`},
		{Name: "parse_error", Pattern: `parse \s error`},
		{Name: "could_not_parse", Pattern: `could \s not \s parse`},
		{Name: "invalid_endian_flag", Pattern: `invalid \s endian \s flag`},
		{Name: "invalid_representation", Pattern: `invalid \s \w+ \s representation`},
		{Name: "invalid_document", Pattern: `invalid \s \S+ \s document`},
		{Name: "unknown_type", Pattern: `unknown \s (wkb|GeoJSON) \s type`},
		{Name: "unexpected_character", Pattern: `unexpected \s character`},
		{Name: "gml_version", Pattern: `only \s GML \s 2 \s and \s GML \s 3 \s are \s supported`},
		{Name: "buffer_parameter", Pattern: `buffer \s parameter`},
		{Name: "only_accepts", Pattern: `only \s accepts`},
		{Name: "is_unsupported", Pattern: `is \s unsupported`},
		{Name: "is_not_a_line", Pattern: `is \s not \s a \s line`},
		{Name: "only_x_supported", Pattern: `only \s [\w\s]+ \s (is|are) \s supported`},
		{Name: "cannot_subdivide", Pattern: `cannot \s subdivide`},
		{Name: "bounds_too_small", Pattern: `bounds \s are \s too \s small`},
		{Name: "option_string_entry", Pattern: `option \s string \s entry`},
		{Name: "is_not_lineal", Pattern: `is \s not \s lineal`},
		{Name: "illegal_argument", Substring: "IllegalArgumentException"},
	}
}

// DefaultOperatorRules are the rejections accepted when operators run as
// filters over stored values.
func DefaultOperatorRules() []Rule {
	return []Rule{
		{Name: "requires_measure", Pattern: `must \s have \s a \s measure`},
	}
}
