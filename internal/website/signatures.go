package website

import "sort"

// Marker is a lowercase pattern and the score it adds when present.
type Marker struct {
	Pattern string
	Weight  int
}

// HeaderMarker matches a response header by name, optionally requiring its
// value to contain Contains (lowercase).
type HeaderMarker struct {
	Name     string
	Contains string
	Weight   int
}

// Signature identifies one commerce platform.
type Signature struct {
	Platform string
	// Specificity orders signatures: higher is tried first. Equal
	// specificity keeps table order.
	Specificity int
	MinScore    int
	HTML        []Marker
	Headers     []HeaderMarker
	Cookies     []Marker
}

func mk(pattern string, weight int) Marker { return Marker{Pattern: pattern, Weight: weight} }

func anyOf(patterns ...string) []Marker {
	out := make([]Marker, len(patterns))
	for i, p := range patterns {
		out[i] = Marker{Pattern: p, Weight: 1}
	}
	return out
}

// DefaultSignatures is ordered by specificity, then by how common the
// platform is among small e-commerce advertisers.
var DefaultSignatures = sortSignatures([]Signature{
	{
		Platform:    "Shopify",
		Specificity: 3,
		MinScore:    3,
		HTML: []Marker{
			mk("cdn.shopify.com", 3), mk("myshopify.com", 3), mk("monorail-edge.shopifysvc.com", 3),
			mk("/cdn/shop/", 2), mk("shopify-analytics", 2), mk("shopify.theme", 2), mk("shopify.routes", 2),
			mk("shopify.paymentbutton", 2), mk("shopify-section", 2), mk("data-shopify", 2),
			mk("shopify.accesstoken", 2), mk("window.shopify", 2), mk("shopify.cdnhost", 2),
			mk("shopify-features", 1), mk("shopify_pay", 1), mk("/cart.js", 1),
		},
		Headers: []HeaderMarker{
			{Name: "x-shopify-stage", Weight: 2},
			{Name: "x-shopify-request-id", Weight: 2},
			{Name: "x-sorting-hat-podid", Weight: 2},
			{Name: "x-sorting-hat-shopid", Weight: 2},
			{Name: "x-shopid", Weight: 2},
			{Name: "x-powered-by", Contains: "shopify", Weight: 2},
			{Name: "server", Contains: "shopify", Weight: 2},
		},
		Cookies: []Marker{mk("_shopify_s", 2), mk("_shopify_y", 2), mk("cart_sig", 2), mk("secure_customer_sig", 2)},
	},
	{
		Platform:    "WooCommerce",
		Specificity: 3,
		MinScore:    1,
		HTML: []Marker{
			mk("woocommerce", 3), mk("wc-ajax", 3), mk("wc-add-to-cart", 3), mk("wc_cart", 3), mk("wc-blocks", 3),
			mk("add_to_cart_button", 1), mk("cart-contents", 1),
		},
		Cookies: []Marker{mk("woocommerce_items_in_cart", 2), mk("wp_woocommerce_session", 2)},
	},
	{
		Platform:    "PrestaShop",
		Specificity: 2,
		MinScore:    1,
		HTML: []Marker{
			mk("prestashop", 3), mk("/modules/ps_", 3), mk("prestashop-page", 3),
			mk("ps_shoppingcart", 1), mk("ps_customersignin", 1), mk("blockcart", 1), mk("/themes/classic/", 1),
		},
		Cookies: []Marker{mk("prestashop-", 2)},
	},
	{
		Platform:    "Magento",
		Specificity: 2,
		MinScore:    1,
		HTML:        []Marker{mk("magento", 3), mk("/static/frontend/", 3), mk("mage/cookies", 2), mk("varien", 1), mk("catalogsearch/result", 1)},
		Headers:     []HeaderMarker{{Name: "x-magento-cache-debug", Weight: 3}, {Name: "x-magento-tags", Weight: 3}},
	},
	{Platform: "Wix", Specificity: 2, MinScore: 1, HTML: anyOf("wixstatic.com", "parastorage.com", "wix-code-sdk", "wixapps.net", "_wix_browser_sess")},
	{Platform: "Squarespace", Specificity: 2, MinScore: 1, HTML: anyOf("static1.squarespace", "squarespace-cdn", "sqs-analytics", "data-squarespace-")},
	{Platform: "BigCommerce", Specificity: 2, MinScore: 1, HTML: anyOf("bigcommerce", "cdn.bcapp", "bcappcdn")},
	{Platform: "Webflow", Specificity: 2, MinScore: 1, HTML: anyOf("assets.website-files.com", "data-wf-site", "webflow-production", "w-commerce")},
	{Platform: "Shopware", Specificity: 2, MinScore: 1, HTML: anyOf("shopware", "sw-cms-", "sw-blocks")},
	{Platform: "OpenCart", Specificity: 2, MinScore: 1, HTML: anyOf("opencart", "index.php?route=", "route=product/")},
	{Platform: "Salesforce Commerce", Specificity: 2, MinScore: 1, HTML: anyOf("demandware", "dwanalytics", "/dw/shop/")},
	{Platform: "WiziShop", Specificity: 2, MinScore: 1, HTML: anyOf("wizishop", "cdn.wizishop.com")},
	{Platform: "Oxatis", Specificity: 2, MinScore: 1, HTML: anyOf("oxatis", "cdn.oxatis.com")},
	{Platform: "Ecwid", Specificity: 2, MinScore: 1, HTML: anyOf("app.ecwid.com", "ecwid_product", "ecwid-")},
	{Platform: "Jimdo", Specificity: 2, MinScore: 1, HTML: anyOf("jimdocdn", "a.jimdo.com", "jimdo")},
	{Platform: "Weebly", Specificity: 2, MinScore: 1, HTML: anyOf("weeblycloud", "editmysite.com")},
	{Platform: "Snipcart", Specificity: 2, MinScore: 1, HTML: anyOf("cdn.snipcart.com", "snipcart-add-item")},
	{Platform: "Systeme.io", Specificity: 2, MinScore: 1, HTML: anyOf("systeme.io", "systemeio")},
	{Platform: "ClickFunnels", Specificity: 2, MinScore: 1, HTML: anyOf("clickfunnels", "cf2.com")},
	{
		Platform:    "WordPress",
		Specificity: 1,
		MinScore:    1,
		HTML: anyOf("wp-content", "wp-includes", "wp-json", "/wp-admin",
			`name="generator" content="wordpress`, "powered by wordpress"),
		Headers: []HeaderMarker{{Name: "link", Contains: "wp-json", Weight: 1}},
	},
	{Platform: "Drupal", Specificity: 1, MinScore: 1, HTML: anyOf("/sites/default/files", "/core/misc/drupal", "drupal-settings-json")},
	{Platform: "Odoo", Specificity: 1, MinScore: 1, HTML: anyOf("/web/static/", "/website/static/", "odoo")},
	{Platform: "Joomla", Specificity: 1, MinScore: 1, HTML: anyOf("/components/com_", "/media/jui/", "option=com_")},
	{Platform: "Typo3", Specificity: 1, MinScore: 1, HTML: anyOf("typo3conf", "typo3temp")},
})

func sortSignatures(sigs []Signature) []Signature {
	sort.SliceStable(sigs, func(i, j int) bool {
		return sigs[i].Specificity > sigs[j].Specificity
	})
	return sigs
}

// PaymentMethod is a payment integration and the markers that reveal it.
// Word markers must match on word boundaries.
type PaymentMethod struct {
	ID      string
	Markers []string
	Words   []string
}

var DefaultPayments = []PaymentMethod{
	{ID: "visa", Markers: []string{"pi-visa"}, Words: []string{"visa"}},
	{ID: "mastercard", Markers: []string{"pi-master", "mastercard"}},
	{ID: "american_express", Markers: []string{"pi-american_express", "american express"}, Words: []string{"amex"}},
	{ID: "discover", Markers: []string{"pi-discover", "discover card"}},
	{ID: "diners_club", Markers: []string{"pi-diners_club", "diners club"}},
	{ID: "apple_pay", Markers: []string{"pi-apple_pay", "apple pay", "apple-pay"}},
	{ID: "google_pay", Markers: []string{"pi-google_pay", "google pay", "google-pay"}},
	{ID: "shop_pay", Markers: []string{"pi-shopify_pay", "shop pay", "shop_pay", "shopify_pay"}},
	{ID: "paypal", Markers: []string{"pi-paypal", "paypal"}},
	{ID: "amazon_pay", Markers: []string{"pi-amazon", "amazon pay", "amazonpay"}},
	{ID: "klarna", Markers: []string{"pi-klarna", "klarna"}},
	{ID: "clearpay", Markers: []string{"clearpay"}},
	{ID: "afterpay", Markers: []string{"afterpay"}},
	{ID: "alma", Markers: []string{"getalma", "alma-widget"}, Words: []string{"alma"}},
	{ID: "scalapay", Markers: []string{"scalapay"}},
	{ID: "sepa", Markers: []string{"virement sepa", "sepa_debit"}, Words: []string{"sepa"}},
	{ID: "cash_on_delivery", Markers: []string{"paiement à la livraison", "cash on delivery", "contre-remboursement"}},
	{ID: "crypto", Markers: []string{"crypto-monnaies", "cryptocurrency", "coinbase commerce"}, Words: []string{"bitcoin"}},
	{ID: "stripe", Markers: []string{"js.stripe.com"}, Words: []string{"stripe"}},
	{ID: "mollie", Markers: []string{"mollie.com"}, Words: []string{"mollie"}},
	{ID: "payplug", Markers: []string{"payplug"}},
	{ID: "2checkout", Markers: []string{"2checkout"}},
	{ID: "checkout_com", Markers: []string{"checkout.com", "cdn.checkout.com"}},
}
