package extract

import "regexp"

// A capture ends at the next field label, a clause separator, or the end of
// the text. Values may be wrapped in quotes.
const (
	quoteOpen  = `["'“«]?`
	quoteClose = `["'”»]?`
	clauseEnd  = `(?:[,;]|\.(?:\s|$)|$)`
)

func stopAt(words string) string {
	return `(?:\s+(?:` + words + `)\b|\s*` + clauseEnd + `)`
}

func labeled(prefix, stop string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + prefix + quoteOpen + `(.+?)` + quoteClose + stopAt(stop))
}

var (
	clienteStop  = `con|producto|por|en|medio|durante|mes|monto|presupuesto|valor`
	productoStop = `por|en|para|medio|con|durante|mes|monto|presupuesto|valor|cliente`
	medioStop    = `por|en|para|con|durante|mes|monto|presupuesto|valor|producto|cliente`
)

var clientePatterns = []*regexp.Regexp{
	labeled(`\bcliente\s*:?\s*`, clienteStop),
	labeled(`\bpara\s+(?:el\s+cliente\s+|la\s+empresa\s+|la\s+marca\s+)?`, clienteStop),
}

var productoPatterns = []*regexp.Regexp{
	labeled(`\bproducto\s*:?\s*`, productoStop),
	labeled(`\bcampa[ñn]a\s*:?\s*`, productoStop),
}

var medioPatterns = []*regexp.Regexp{
	labeled(`\bmedio\s*:?\s*`, medioStop),
	regexp.MustCompile(`(?i)\b(?:por|en)\s+` + quoteOpen +
		`((?:televisi[oó]n|tv|radio|prensa|diario|revista|cine|digital|internet|redes\s+sociales|v[ií]a\s+p[uú]blica|canal)\b.*?)` +
		quoteClose + stopAt(medioStop)),
	regexp.MustCompile(`(?i)\bpor\s+` + quoteOpen + `([^\d$"',;][^$"',;]*?)` + quoteClose + `\s+por\s+\$`),
}

var montoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s*(-?\d[\d.,]*)`),
	regexp.MustCompile(`(?i)\b(?:monto|presupuesto|valor|total|inversi[oó]n)\s*:?\s*(?:de\s+)?\$?\s*(-?\d[\d.,]*)`),
	regexp.MustCompile(`(?i)(-?\d[\d.,]*)\s*(?:pesos|clp)\b`),
}

var mesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre)\b`),
	regexp.MustCompile(`(?i)\bmes\s*:?\s*(?:de\s+)?(\d{1,2})\b`),
	regexp.MustCompile(`\b(\d{1,2})/\d{4}\b`),
}

var anioPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:a[ñn]o|del?)\s+((?:19|20)\d{2})\b`),
	regexp.MustCompile(`\b\d{1,2}/(\d{4})\b`),
	regexp.MustCompile(`(?:^|[^\d$.,])((?:19|20)\d{2})(?:$|[^\d.,]|[.,](?:\D|$))`),
}

var duracionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d{1,3})\s*d[ií]as?\b`),
}

var semanasPatterns = []*regexp.Regexp{regexp.MustCompile(`(?i)\b(\d{1,2})\s*semanas?\b`)}

var cantidadPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d{1,4})\s*(?:spots?|avisos?|cu[ñn]as?|menciones|inserciones|unidades|apariciones)\b`),
	regexp.MustCompile(`(?i)\bcantidad\s*:?\s*(?:de\s+)?(\d{1,4})\b`),
}

// firstMatch returns the first non-empty capture of the first pattern that
// matches.
func firstMatch(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if v := cleanCapture(m[1]); v != "" {
			return v, true
		}
	}
	return "", false
}
