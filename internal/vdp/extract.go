package vdp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/quirkauto/inventory-crawler/internal/inventory"
)

var (
	vinLabelPattern    = regexp.MustCompile(`(?i)\bVIN[:\s]*([A-HJ-NPR-Z0-9]{11,17})\b`)
	headingYearPattern = regexp.MustCompile(`\b(20\d{2})\b`)
	fourDigitPattern   = regexp.MustCompile(`^\d{4}$`)
)

// pageContext carries the parsed document through the extractor chain.
type pageContext struct {
	doc  *goquery.Document
	url  string
	body string
}

func (p *pageContext) bodyText() string {
	if p.body == "" {
		p.body = p.doc.Find("body").Text()
	}
	return p.body
}

// extractors run in priority order; each fills only fields still missing,
// so structured data wins over page-text heuristics.
var extractors = []func(*pageContext, *inventory.Vehicle){
	extractStructuredData,
	extractVINFromText,
	extractYearFromHeading,
	extractPhotoFromMeta,
	inferStockType,
}

// Extract pulls a best-effort vehicle record out of a VDP document. It never
// fails: fields that cannot be recovered stay zero and are judged later by
// the validator.
func Extract(html, vdpURL string) inventory.Vehicle {
	vehicle := inventory.Vehicle{VDP: vdpURL}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		vehicle.StockType = stockTypeFromURL(vdpURL)
		return vehicle
	}
	page := &pageContext{doc: doc, url: vdpURL}
	for _, extract := range extractors {
		extract(page, &vehicle)
	}
	return vehicle
}

func extractStructuredData(p *pageContext, v *inventory.Vehicle) {
	block := selectVehicleBlock(decodeStructuredBlocks(p.doc))
	if block == nil {
		return
	}

	v.VIN = firstString(block, "vin", "sku", "mpn")

	name, _ := block["name"].(string)
	tokens := strings.Fields(name)
	maybeYear := ""
	if len(tokens) > 0 && fourDigitPattern.MatchString(tokens[0]) {
		maybeYear = tokens[0]
	}
	for _, raw := range []any{block["modelDate"], block["productionDate"], maybeYear} {
		if year := parseYear(raw); year != 0 {
			v.Year = year
			break
		}
	}

	v.Make = strings.TrimSpace(brandName(block))
	if v.Make == "" && len(tokens) >= 2 {
		v.Make = tokens[1]
	}
	if len(tokens) >= 3 {
		v.Model = tokens[2]
		v.Trim = strings.Join(tokens[3:], " ")
	}

	if offer := firstOffer(block); offer != nil {
		if price, ok := parsePrice(offer["price"]); ok {
			v.Price = price
		} else if spec, specOK := offer["priceSpecification"].(map[string]any); specOK {
			if price, ok := parsePrice(spec["price"]); ok {
				v.Price = price
			}
		}
	}

	v.Photo = firstImage(block["image"])
}

func extractVINFromText(p *pageContext, v *inventory.Vehicle) {
	if v.VIN != "" {
		return
	}
	if m := vinLabelPattern.FindStringSubmatch(p.bodyText()); m != nil {
		v.VIN = m[1]
	}
}

func extractYearFromHeading(p *pageContext, v *inventory.Vehicle) {
	if v.Year != 0 {
		return
	}
	heading := p.doc.Find("h1, .title, .vehicle-title").First().Text()
	if m := headingYearPattern.FindStringSubmatch(heading); m != nil {
		v.Year, _ = strconv.Atoi(m[1])
	}
}

func extractPhotoFromMeta(p *pageContext, v *inventory.Vehicle) {
	if v.Photo != "" {
		return
	}
	if content, ok := p.doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		v.Photo = content
	}
}

func inferStockType(p *pageContext, v *inventory.Vehicle) {
	if v.StockType != "" {
		return
	}
	if stockTypeFromURL(p.url) == inventory.StockTypeUsed ||
		strings.Contains(strings.ToLower(p.bodyText()), "used") {
		v.StockType = inventory.StockTypeUsed
		return
	}
	v.StockType = inventory.StockTypeNew
}

func stockTypeFromURL(rawURL string) inventory.StockType {
	if strings.Contains(rawURL, "/used-") {
		return inventory.StockTypeUsed
	}
	return inventory.StockTypeNew
}

// decodeStructuredBlocks collects every JSON-LD object on the page,
// flattening top-level arrays. Malformed blocks are skipped silently;
// partial blobs are expected on this site.
func decodeStructuredBlocks(doc *goquery.Document) []map[string]any {
	var blocks []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return
		}
		switch val := parsed.(type) {
		case []any:
			for _, item := range val {
				if block, ok := item.(map[string]any); ok {
					blocks = append(blocks, block)
				}
			}
		case map[string]any:
			blocks = append(blocks, val)
		}
	})
	return blocks
}

// selectVehicleBlock picks the most specific structured-data block:
// an exact Vehicle type, then Product, then any type naming either.
func selectVehicleBlock(blocks []map[string]any) map[string]any {
	for _, want := range []string{"Vehicle", "Product"} {
		for _, block := range blocks {
			if typeName, _ := block["@type"].(string); typeName == want {
				return block
			}
		}
	}
	for _, block := range blocks {
		if block["@type"] == nil {
			continue
		}
		typeName := strings.ToLower(fmt.Sprint(block["@type"]))
		if strings.Contains(typeName, "vehicle") || strings.Contains(typeName, "product") {
			return block
		}
	}
	return nil
}

func firstString(block map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := block[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func brandName(block map[string]any) string {
	switch brand := block["brand"].(type) {
	case string:
		return brand
	case map[string]any:
		if name, ok := brand["name"].(string); ok {
			return name
		}
	}
	return ""
}

func firstOffer(block map[string]any) map[string]any {
	switch offers := block["offers"].(type) {
	case map[string]any:
		return offers
	case []any:
		if len(offers) > 0 {
			if offer, ok := offers[0].(map[string]any); ok {
				return offer
			}
		}
	}
	return nil
}

func firstImage(raw any) string {
	switch img := raw.(type) {
	case string:
		return img
	case []any:
		if len(img) > 0 {
			if s, ok := img[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func parseYear(raw any) int {
	switch val := raw.(type) {
	case string:
		if fourDigitPattern.MatchString(val) {
			year, _ := strconv.Atoi(val)
			return year
		}
	case float64:
		year := int(val)
		if year >= 1000 && year <= 9999 {
			return year
		}
	}
	return 0
}

func parsePrice(raw any) (float64, bool) {
	switch val := raw.(type) {
	case float64:
		return val, true
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(val, "$"), ",", ""))
		if cleaned == "" {
			return 0, false
		}
		price, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return price, true
	}
	return 0, false
}
