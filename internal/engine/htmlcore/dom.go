package htmlcore

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/embedkit/viewbridge/internal/engine"
)

// document wraps the parsed page markup.
type document struct {
	gq *goquery.Document
}

// scriptElement is one <script> in document order.
type scriptElement struct {
	src    string
	inline string
}

func parseDocument(html string) (*document, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &document{gq: gq}, nil
}

func (d *document) title() string {
	return strings.TrimSpace(d.gq.Find("title").First().Text())
}

func (d *document) scripts() []scriptElement {
	var out []scriptElement
	d.gq.Find("script").Each(func(_ int, sel *goquery.Selection) {
		out = append(out, scriptElement{
			src:    sel.AttrOr("src", ""),
			inline: sel.Text(),
		})
	})
	return out
}

// cursorStyle extracts the cursor declaration from the body's inline style.
func (d *document) cursorStyle() string {
	style := d.gq.Find("body").AttrOr("style", "")
	for _, decl := range strings.Split(style, ";") {
		name, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		if strings.TrimSpace(name) == "cursor" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// installDocument exposes a document object with the query surface pages
// use. Element proxies write mutations back into the parsed tree.
func (v *View) installDocument() {
	vm := v.vm
	doc := vm.NewObject()

	doc.Set("title", v.doc.title())
	doc.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		sel := v.safeFind(call.Argument(0).String())
		if sel == nil || sel.Length() == 0 {
			return goja.Null()
		}
		return vm.ToValue(v.elementProxy(sel.First()))
	})
	doc.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return v.elementList(v.safeFind(call.Argument(0).String()))
	})
	doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		sel := v.safeFind("#" + call.Argument(0).String())
		if sel == nil || sel.Length() == 0 {
			return goja.Null()
		}
		return vm.ToValue(v.elementProxy(sel.First()))
	})
	doc.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		return v.elementList(v.safeFind("." + call.Argument(0).String()))
	})
	doc.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return v.elementList(v.safeFind(call.Argument(0).String()))
	})

	vm.Set("document", doc)
}

// safeFind runs a selector query, absorbing the panic goquery raises on a
// selector that fails to compile.
func (v *View) safeFind(selector string) (sel *goquery.Selection) {
	defer func() {
		if recover() != nil {
			v.console(engine.ConsoleLevelError, "invalid selector: "+selector)
			sel = nil
		}
	}()
	return v.doc.gq.Find(selector)
}

func (v *View) elementList(sel *goquery.Selection) goja.Value {
	if sel == nil {
		return v.vm.ToValue([]interface{}{})
	}
	out := make([]interface{}, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, v.elementProxy(s))
	})
	return v.vm.ToValue(out)
}

func (v *View) elementProxy(sel *goquery.Selection) map[string]interface{} {
	tag := ""
	if len(sel.Nodes) > 0 && sel.Nodes[0].Type == html.ElementNode {
		tag = strings.ToUpper(sel.Nodes[0].Data)
	}
	return map[string]interface{}{
		"tagName":     tag,
		"id":          sel.AttrOr("id", ""),
		"className":   sel.AttrOr("class", ""),
		"textContent": sel.Text(),
		"getAttribute": func(name string) string {
			return sel.AttrOr(name, "")
		},
		"setAttribute": func(name, value string) {
			sel.SetAttr(name, value)
			v.displayPending = true
		},
		"setTextContent": func(text string) {
			sel.SetText(text)
			v.displayPending = true
		},
	}
}

// resolveResources walks the document's asset references. Sandbox paths are
// checked for existence, virtual image sources resolve to registered
// bitmaps, and absolute URLs hit the network gate.
func (v *View) resolveResources() {
	v.doc.gq.Find("img[src], link[href]").Each(func(_ int, sel *goquery.Selection) {
		attr := "src"
		if goquery.NodeName(sel) == "link" {
			attr = "href"
		}
		ref := sel.AttrOr(attr, "")
		if ref == "" {
			return
		}
		v.resolveResource(ref, sel)
	})
}

func (v *View) resolveResource(ref string, sel *goquery.Selection) {
	if isAbsoluteURL(ref) {
		if v.gate == nil || !v.gate.AllowRequest(ref) {
			v.console(engine.ConsoleLevelWarning, "blocked external resource: "+ref)
		}
		return
	}

	fs := v.eng.opts.FS
	if fs == nil {
		return
	}
	path := assetPath(ref)
	if !fs.FileExists(path) {
		v.console(engine.ConsoleLevelWarning, "asset not found: "+ref)
		return
	}
	data, err := fs.Open(path)
	if err != nil {
		v.console(engine.ConsoleLevelError, "asset unreadable: "+ref)
		return
	}

	if id, ok := virtualImageID(data); ok {
		img, found := v.eng.lookupImage(id)
		if !found {
			v.console(engine.ConsoleLevelWarning, "unregistered image source: "+id)
			return
		}
		sel.SetAttr("width", strconv.Itoa(img.width))
		sel.SetAttr("height", strconv.Itoa(img.height))
	}
}

const virtualImageHeader = "IMGSRC-V1\n"

// virtualImageID extracts the registered-image id from a virtual asset
// payload.
func virtualImageID(data []byte) (string, bool) {
	s := string(data)
	if !strings.HasPrefix(s, virtualImageHeader) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(s, virtualImageHeader)), true
}
