package website

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Category is a thematic store category and the product types under it.
type Category struct {
	Name     string
	Keywords []string
	Products []ProductType
}

type ProductType struct {
	Name     string
	Keywords []string
}

const productWeight = 0.25

// DefaultTaxonomy is tuned for French-speaking storefronts.
var DefaultTaxonomy = []Category{
	{
		Name:     "Mode & Accessoires",
		Keywords: []string{"mode", "accessoires", "fashion"},
		Products: []ProductType{
			{"Bijoux", []string{"bijou", "jewelry", "collier", "bracelet", "bague", "boucles"}},
			{"Montres", []string{"montre", "watch"}},
			{"Maillots de bain", []string{"maillot de bain", "bikini", "swimwear"}},
			{"Sacs à main", []string{"sac à main", "sacs", "handbag"}},
			{"Lunettes", []string{"lunette", "sunglasses", "solaires", "optique"}},
			{"Chaussures", []string{"chaussure", "sneaker", "basket", "sandale", "boots"}},
			{"Vêtements homme", []string{"homme", "menswear"}},
			{"Vêtements femme", []string{"femme", "robe", "womenswear"}},
			{"Vêtements sport", []string{"legging", "sportswear"}},
		},
	},
	{
		Name:     "Beauté & Soins",
		Keywords: []string{"beauté", "soins", "cosmétique", "skincare"},
		Products: []ProductType{
			{"Sérums", []string{"sérum"}},
			{"Crèmes", []string{"crème"}},
			{"Brosses nettoyantes", []string{"brosse nettoyante"}},
			{"Huiles essentielles", []string{"huile essentielle"}},
			{"Outils de massage", []string{"rouleau de jade", "gua sha"}},
		},
	},
	{
		Name:     "Santé & Bien-être",
		Keywords: []string{"santé", "bien-être", "wellness"},
		Products: []ProductType{
			{"Ceintures de posture", []string{"correcteur de posture", "posture"}},
			{"Pistolets de massage", []string{"pistolet de massage", "massage gun"}},
			{"Patchs antidouleur", []string{"patch", "antidouleur"}},
			{"Accessoires de relaxation", []string{"relaxation", "méditation"}},
			{"Appareils de fitness", []string{"électrostimulation", "fitness"}},
		},
	},
	{
		Name:     "Maison & Décoration",
		Keywords: []string{"maison", "décoration", "déco", "home decor"},
		Products: []ProductType{
			{"Luminaires", []string{"lampe", "luminaire", "suspension"}},
			{"Organisateurs", []string{"organisateur"}},
			{"Tableaux décoratifs", []string{"tableau", "toile", "affiche"}},
			{"Plantes artificielles", []string{"plante artificielle"}},
			{"Accessoires de rangement", []string{"rangement", "boîte de rangement"}},
		},
	},
	{
		Name:     "Animaux",
		Keywords: []string{"animaux", "chien", "chat", "pet"},
		Products: []ProductType{
			{"Colliers", []string{"collier pour chien", "collier chat"}},
			{"Harnais", []string{"harnais"}},
			{"Jouets", []string{"jouet pour chien", "jouet pour chat"}},
			{"Gamelles automatiques", []string{"gamelle", "distributeur de croquettes"}},
			{"Produits d'hygiène", []string{"litière", "shampoing pour chien"}},
		},
	},
	{
		Name:     "High-Tech & Gadgets",
		Keywords: []string{"high-tech", "gadget", "électronique", "tech"},
		Products: []ProductType{
			{"Chargeurs sans fil", []string{"chargeur sans fil", "chargeur"}},
			{"Écouteurs Bluetooth", []string{"ecouteurs", "earbuds", "bluetooth earbuds", "airpods"}},
			{"Montres connectées", []string{"montre connectée", "smartwatch"}},
			{"Caméras", []string{"caméra", "camera"}},
			{"Mini projecteurs", []string{"projecteur", "vidéoprojecteur"}},
			{"Gadgets", []string{"gadgets"}},
		},
	},
	{
		Name:     "Bébé & Enfant",
		Keywords: []string{"bébé", "enfant", "maternité", "puériculture"},
		Products: []ProductType{
			{"Jouets éducatifs", []string{"jouet éducatif", "montessori"}},
			{"Veilleuses", []string{"veilleuse"}},
			{"Tapis d'éveil", []string{"tapis d'éveil"}},
			{"Bavoirs", []string{"bavoir"}},
			{"Articles de sécurité enfant", []string{"barrière de sécurité", "babyphone"}},
		},
	},
	{
		Name:     "Sport & Loisirs",
		Keywords: []string{"sport", "loisirs", "outdoor"},
		Products: []ProductType{
			{"Accessoires de yoga", []string{"yoga", "tapis de yoga"}},
			{"Élastiques de musculation", []string{"élastique", "bande de résistance", "musculation"}},
			{"Bouteilles isothermes", []string{"gourde", "bouteille isotherme"}},
			{"Sacs de sport", []string{"sac de sport"}},
			{"Gants de fitness", []string{"gants de fitness", "gants de musculation"}},
		},
	},
	{
		Name:     "Cuisine & Alimentation",
		Keywords: []string{"cuisine", "alimentation", "recette"},
		Products: []ProductType{
			{"Ustensiles", []string{"ustensile", "spatule"}},
			{"Robots de cuisine", []string{"robot de cuisine", "blender", "mixeur"}},
			{"Rangements alimentaires", []string{"boîte hermétique", "bocal"}},
			{"Accessoires de pâtisserie", []string{"pâtisserie", "moule"}},
			{"Gadgets de découpe", []string{"coupe-légumes", "mandoline", "éplucheur"}},
		},
	},
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s and strips diacritics, so "Beauté" and "beaute" compare
// equal.
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Taxonomy classifies page text into a category and its product types.
type Taxonomy struct {
	categories []Category
	set        *markerSet
}

func NewTaxonomy(categories []Category) *Taxonomy {
	var all []string
	for _, c := range categories {
		all = append(all, categoryTerms(c)...)
		for _, p := range c.Products {
			all = append(all, productTerms(p)...)
		}
	}
	return &Taxonomy{
		categories: categories,
		set:        newMarkerSet(all, func(string) bool { return true }),
	}
}

func categoryTerms(c Category) []string {
	terms := []string{Fold(c.Name)}
	for _, k := range c.Keywords {
		terms = append(terms, Fold(k))
	}
	return terms
}

func productTerms(p ProductType) []string {
	terms := []string{Fold(p.Name)}
	for _, k := range p.Keywords {
		terms = append(terms, Fold(k))
	}
	return terms
}

// Classify returns the best scoring category for text and the product
// types found under it, most distinct hits first. An empty category means
// nothing matched.
func (t *Taxonomy) Classify(text string) (string, []string) {
	found := t.set.find([]byte(Fold(text)))
	if len(found) == 0 {
		return "", nil
	}

	best, bestScore := -1, 0.0
	for i, c := range t.categories {
		score := float64(countHits(categoryTerms(c), found))
		for _, p := range c.Products {
			score += productWeight * float64(countHits(productTerms(p), found))
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return "", nil
	}

	type hit struct {
		name string
		n    int
	}
	var hits []hit
	for _, p := range t.categories[best].Products {
		if n := countHits(productTerms(p), found); n > 0 {
			hits = append(hits, hit{p.Name, n})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].n != hits[j].n {
			return hits[i].n > hits[j].n
		}
		return hits[i].name < hits[j].name
	})
	types := make([]string, len(hits))
	for i, h := range hits {
		types[i] = h.name
	}
	return t.categories[best].Name, types
}

func countHits(terms []string, found map[string]bool) int {
	n := 0
	seen := map[string]bool{}
	for _, term := range terms {
		if found[term] && !seen[term] {
			seen[term] = true
			n++
		}
	}
	return n
}
