package services

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html/charset"
)

// xmlNode: tedarikçi XML'lerinin şeması sabit değil, bu yüzden genel bir ağaç olarak okunur
type xmlNode struct {
	Name     string
	Text     string
	Children []*xmlNode
}

func (n *xmlNode) child(names ...string) *xmlNode {
	for _, name := range names {
		for _, c := range n.Children {
			if c.Name == name {
				return c
			}
		}
	}
	return nil
}

func (n *xmlNode) all(names ...string) []*xmlNode {
	for _, name := range names {
		var out []*xmlNode
		for _, c := range n.Children {
			if c.Name == name {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// get: verilen adlardan boş olmayan ilk alt etiketin metni
func (n *xmlNode) get(names ...string) string {
	for _, name := range names {
		for _, c := range n.Children {
			if c.Name == name {
				if v := strings.TrimSpace(c.Text); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func parseXMLTree(raw []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel

	var root *xmlNode
	var stack []*xmlNode
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml okunamadı: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{Name: t.Name.Local}
			if len(stack) == 0 {
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, core.ErrUnknownFeedFormat
	}
	return root, nil
}

var (
	productListKeys  = []string{"products", "product", "Items", "items", "Urunler", "urunler", "Urun", "urun"}
	productChildKeys = []string{"product", "Product", "item", "Item", "urun", "Urun"}
)

// findProductList: kök etiketine göre ürün düğümlerini bulur
func findProductList(root *xmlNode) []*xmlNode {
	if root.Name == "root" {
		if list := root.all("product"); list != nil {
			return list
		}
	}
	for _, key := range productListKeys {
		if root.Name != key {
			continue
		}
		if list := root.all(productChildKeys...); list != nil {
			return list
		}
		// tek ürünlük feed
		return []*xmlNode{root}
	}
	// <catalog><products><product>... gibi bir seviye daha sarılmış feed'ler
	for _, c := range root.Children {
		for _, key := range productListKeys {
			if c.Name == key {
				if list := c.all(productChildKeys...); list != nil {
					return list
				}
			}
		}
	}
	return nil
}

// ParseXMLFeed, tedarikçi XML'ini kayıtlara çevirir. brandMap nil olabilir.
func ParseXMLFeed(raw []byte, brandMap map[string]string) ([]core.SupplierRecord, error) {
	root, err := parseXMLTree(raw)
	if err != nil {
		return nil, err
	}
	items := findProductList(root)
	if items == nil {
		return nil, core.ErrUnknownFeedFormat
	}

	var records []core.SupplierRecord
	for _, row := range items {
		productCode := row.get("productCode", "ProductCode", "product_code", "Product_Code", "code", "Code")
		modelCode := row.get("modelCode", "ModelCode", "model_code", "Model_Code", "groupCode", "GroupCode")
		barcode := row.get("barcode", "barcod", "Barkod", "BARKOD", "productBarcode", "ProductBarcode", "Barcode")

		// "Bgz", "yok" gibi barkodlarda ürün kodu kimlik olur
		if productCode != "" && core.IsWeakBarcode(barcode) {
			barcode = productCode
		}
		if barcode == "" {
			continue
		}

		stockCode := row.get("stockCode", "StockCode")
		if stockCode == "" {
			stockCode = productCode
		}
		if stockCode == "" {
			stockCode = barcode
		}

		price, _ := utils.ParseMoney(row.get("price", "Price", "salePrice", "SalePrice", "unitPrice", "UnitPrice", "listPrice", "ListPrice"))
		category := row.get("category", "Category", "top_category", "TopCategory")

		rec := core.SupplierRecord{
			Barcode:     barcode,
			StockCode:   stockCode,
			ProductCode: productCode,
			ModelCode:   modelCode,
			Title:       utils.SanitizeXMLOnly(row.get("name", "Name", "productName", "ProductName", "title", "Title")),
			Description: utils.SanitizeXMLOnly(row.get("detail", "Detail", "description", "Description", "details", "Details", "detay", "Detay")),
			Brand:       MapBrand(row.get("brand", "Brand", "marka", "Marka", "manufacturer", "Manufacturer"), brandMap),
			Category:    category,
			TopCategory: topCategory(category),
			Price:       price,
			Quantity:    utils.StringToInt(row.get("quantity", "Quantity", "stok", "Stok", "OnHand", "stock")),
			VatRate:     parseVatRate(row.get("tax", "Tax", "taxRate", "TaxRate", "vat", "Vat", "kdv", "KDV")),
			Desi:        utils.StringToDecimal(row.get("desi", "Desi")),
			Images:      xmlImages(row),
			Link:        row.get("link", "Link", "url", "Url", "LİNK", "Linkler", "web", "Web", "productUrl", "ProductUrl"),
		}

		variantsNode := row.child("variants", "Variants", "varyantlar", "Varyantlar")
		if variantsNode == nil {
			records = append(records, rec)
			continue
		}
		for _, v := range variantsNode.all("variant", "Variant", "varyant", "Varyant") {
			if vr, ok := variantRecord(rec, v); ok {
				records = append(records, vr)
			}
		}
	}

	if len(records) == 0 {
		return nil, core.ErrEmptyFeed
	}
	return records, nil
}

// variantRecord: ana ürünün kopyası, kendi barkodu, stoğu ve (varsa) fiyatı ile
func variantRecord(parent core.SupplierRecord, v *xmlNode) (core.SupplierRecord, bool) {
	barcode := v.get("barcode", "Barcode", "barkod", "Barkod")
	if barcode == "" {
		return core.SupplierRecord{}, false
	}

	rec := parent
	rec.Images = append([]string(nil), parent.Images...)
	rec.Barcode = barcode
	rec.ParentBarcode = parent.Barcode
	rec.Quantity = utils.StringToInt(v.get("stock", "Stock", "quantity", "Quantity"))
	if p, ok := utils.ParseMoney(v.get("price", "Price")); ok {
		rec.Price = p
	}

	var values []string
	for k := 1; k <= 3; k++ {
		name := v.get(fmt.Sprintf("name%d", k), fmt.Sprintf("Name%d", k))
		value := v.get(fmt.Sprintf("value%d", k), fmt.Sprintf("Value%d", k))
		if name == "" || value == "" {
			continue
		}
		values = append(values, value)
		switch utils.TurkishLower(name) {
		case "renk", "color":
			rec.Color = value
		case "beden", "size", "numara":
			rec.Size = value
		}
	}
	if len(values) > 0 {
		rec.Title = fmt.Sprintf("%s (%s)", parent.Title, strings.Join(values, ", "))
	}
	return rec, true
}

func xmlImages(row *xmlNode) []string {
	var images []string
	for k := 1; k < 10; k++ {
		if v := row.get(fmt.Sprintf("image%d", k), fmt.Sprintf("Image%d", k), fmt.Sprintf("Resim%d", k), fmt.Sprintf("resim%d", k)); v != "" {
			images = append(images, v)
		}
	}
	if len(images) > 0 {
		return images
	}

	if list := row.child("Images", "images", "Resimler", "resimler"); list != nil {
		for _, img := range list.all("Image", "image", "Resim", "resim", "url") {
			if v := strings.TrimSpace(img.Text); v != "" {
				images = append(images, v)
			}
		}
		if len(images) == 0 {
			if v := strings.TrimSpace(list.Text); v != "" {
				images = append(images, v)
			}
		}
	}
	if len(images) > 0 {
		return images
	}

	if v := row.get("Image", "image", "Resim", "resim", "picture", "Picture"); v != "" {
		images = append(images, v)
	}
	return images
}

// parseVatRate: "0.18" -> 18, "20" -> 20, okunamazsa 20
func parseVatRate(raw string) int {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil {
		return 20
	}
	if f <= 1 {
		f *= 100
	}
	return int(decimal.NewFromFloat(f).Round(0).IntPart())
}

// topCategory: "Ev > Mutfak > Bardak" -> "Ev"
func topCategory(category string) string {
	if i := strings.Index(category, ">"); i >= 0 {
		return strings.TrimSpace(category[:i])
	}
	return category
}
