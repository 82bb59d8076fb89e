package qualify

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	multiSpaceRe = regexp.MustCompile(`\s+`)
	nonDigitRe   = regexp.MustCompile(`\D`)
)

// Fold lowercases s, strips diacritics and collapses whitespace so that
// "Agronegócio " and "agronegocio" compare equal.
func Fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// Chained transformers keep state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	return multiSpaceRe.ReplaceAllString(out, " ")
}

// cnaeDigits returns the digits of a CNAE-like code ("01.11-3/01" ->
// "0111301"), or "" when s is a sector name.
func cnaeDigits(s string) string {
	d := nonDigitRe.ReplaceAllString(s, "")
	if len(d) < 2 || len(d) < len(strings.TrimSpace(s))/2 {
		return ""
	}
	return d
}

// Region is a Brazilian macro-region.
type Region string

const (
	RegionNorte       Region = "norte"
	RegionNordeste    Region = "nordeste"
	RegionCentroOeste Region = "centro-oeste"
	RegionSudeste     Region = "sudeste"
	RegionSul         Region = "sul"
)

type uf struct {
	name   string
	region Region
}

var ufs = map[string]uf{
	"AC": {"acre", RegionNorte},
	"AL": {"alagoas", RegionNordeste},
	"AP": {"amapa", RegionNorte},
	"AM": {"amazonas", RegionNorte},
	"BA": {"bahia", RegionNordeste},
	"CE": {"ceara", RegionNordeste},
	"DF": {"distrito federal", RegionCentroOeste},
	"ES": {"espirito santo", RegionSudeste},
	"GO": {"goias", RegionCentroOeste},
	"MA": {"maranhao", RegionNordeste},
	"MT": {"mato grosso", RegionCentroOeste},
	"MS": {"mato grosso do sul", RegionCentroOeste},
	"MG": {"minas gerais", RegionSudeste},
	"PA": {"para", RegionNorte},
	"PB": {"paraiba", RegionNordeste},
	"PR": {"parana", RegionSul},
	"PE": {"pernambuco", RegionNordeste},
	"PI": {"piaui", RegionNordeste},
	"RJ": {"rio de janeiro", RegionSudeste},
	"RN": {"rio grande do norte", RegionNordeste},
	"RS": {"rio grande do sul", RegionSul},
	"RO": {"rondonia", RegionNorte},
	"RR": {"roraima", RegionNorte},
	"SC": {"santa catarina", RegionSul},
	"SP": {"sao paulo", RegionSudeste},
	"SE": {"sergipe", RegionNordeste},
	"TO": {"tocantins", RegionNorte},
}

var ufByName = func() map[string]string {
	m := make(map[string]string, len(ufs))
	for code, u := range ufs {
		m[u.name] = code
	}
	return m
}()

// NormalizeState maps a UF code or a state name to its two-letter code.
// Unknown values are returned upper-cased.
func NormalizeState(s string) string {
	f := Fold(s)
	if f == "" {
		return ""
	}
	if code, ok := ufByName[f]; ok {
		return code
	}
	return strings.ToUpper(f)
}

// RegionOf returns the macro-region of a state, or "" if unknown.
func RegionOf(state string) Region {
	return ufs[NormalizeState(state)].region
}

// NormalizeRegion maps free-form region names ("Centro Oeste", "SUL") onto
// a Region.
func NormalizeRegion(s string) Region {
	f := strings.ReplaceAll(Fold(s), " ", "-")
	switch Region(f) {
	case RegionNorte, RegionNordeste, RegionCentroOeste, RegionSudeste, RegionSul:
		return Region(f)
	}
	return ""
}
