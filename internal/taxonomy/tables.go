package taxonomy

import "github.com/fernandoxavier02/AccountingNews/internal/model"

// rawRelevanceKeywords は改革の中核用語ほど重みが大きい。
// アクセント有無の重複は build で統合される。
var rawRelevanceKeywords = []WeightedKeyword{
	// 改革の中核用語
	{"reforma tributária", 100},
	{"ibs", 95}, // Imposto sobre Bens e Serviços
	{"cbs", 95}, // Contribuição sobre Bens e Serviços
	{"imposto único", 90},
	{"iva brasileiro", 90},
	{"iva", 85},

	// 関連法令
	{"pec 45", 85},
	{"pec 110", 85},
	{"emenda constitucional", 80},
	{"proposta de emenda", 80},
	{"lei complementar", 75},
	{"código tributário", 75},

	// 税目・制度
	{"icms", 70},
	{"iss", 70},
	{"pis", 65},
	{"cofins", 65},
	{"simples nacional", 60},
	{"regime tributário", 60},
	{"tributação", 55},
	{"arrecadação", 55},

	// 一般的な税務用語
	{"imposto", 40},
	{"tributo", 40},
	{"receita federal", 35},
	{"ministério da fazenda", 35},
	{"fisco", 30},
	{"contribuinte", 25},
}

// rawSourceAuthorities は先頭から照合し、最初に一致したものを採用する。
var rawSourceAuthorities = []SourceAuthority{
	{"receita federal", 1.0},
	{"ministério da fazenda", 1.0},
	{"senado federal", 0.95},
	{"câmara dos deputados", 0.95},
	{"portal da transparência", 0.85},
	{"governo federal", 0.8},
	{"congresso nacional", 0.9},
}

var rawCategoryRules = []CategoryRule{
	{model.CategoryTaxReform, []string{"reforma tributária", "ibs", "cbs", "pec 45", "pec 110"}},
	{model.CategoryLegislation, []string{"lei", "emenda", "proposta", "projeto", "medida provisória"}},
	{model.CategoryEconomy, []string{"economia", "pib", "inflação", "mercado", "investimento"}},
	{model.CategoryRegulation, []string{"regulamentação", "norma", "instrução", "portaria"}},
}

var rawPrimaryKeywords = []string{
	"reforma tributária",
	"ibs",
	"cbs",
}

var rawSecondaryKeywords = []string{
	"imposto sobre bens e serviços",
	"contribuição sobre bens e serviços",
	"sistema tributário nacional",
	"código tributário nacional",
	"simplificação tributária",
	"unificação de impostos",
	"icms", "iss", "pis", "cofins",
	"ministério da fazenda",
	"receita federal",
	"congresso nacional",
	"proposta de emenda constitucional",
	"pec",
	"emenda constitucional",
	"tributação",
	"arrecadação",
}

// rawExclusionKeywords はスポーツ・娯楽・天気・事件など主題外の語。
var rawExclusionKeywords = []string{
	"esporte", "futebol", "música", "entretenimento",
	"celebridade", "novela", "filme", "show",
	"crime", "acidente", "trânsito",
	"meteorologia", "tempo", "chuva",
}
