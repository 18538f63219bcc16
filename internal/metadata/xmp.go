package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	nsXMP      = "http://ns.adobe.com/xap/1.0/"
	nsRDF      = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsEXIF     = "http://ns.adobe.com/exif/1.0/"
	nsMSPhoto  = "http://ns.microsoft.com/photo/1.0/"
	xmpKeyword = "XML:com.adobe.xmp"
)

var xmpAPP1Prefix = []byte(nsXMP + "\x00")

const emptyPacket = `<?xpacket begin="` + "\uFEFF" + `" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about="" xmlns:xmp="http://ns.adobe.com/xap/1.0/"/>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

var (
	reRating  = regexp.MustCompile(`xmp:Rating(?:="\s*(-?\d+)\s*"|>\s*(-?\d+)\s*<)`)
	rePercent = regexp.MustCompile(`(?:xmp:RatingPercent|MicrosoftPhoto:Rating)(?:="\s*(\d+)\s*"|>\s*(\d+)\s*<)`)
)

type xmpValues struct {
	dates   Dates
	rating  *int
	percent *int
}

// readXMP extracts rating and dates from an XMP packet. Properties may be
// attributes or child elements of any rdf:Description. If the packet does
// not parse as XML the rating is recovered with regular expressions.
func readXMP(packet []byte) xmpValues {
	var v xmpValues
	if len(packet) == 0 {
		return v
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(packet); err != nil || doc.Root() == nil {
		return readXMPFallback(string(packet))
	}

	var msPercent *int
	for _, desc := range descriptions(doc) {
		for _, p := range properties(desc) {
			switch p.ns + p.name {
			case nsXMP + "Rating":
				setInt(&v.rating, p.value)
			case nsXMP + "RatingPercent":
				setInt(&v.percent, p.value)
			case nsMSPhoto + "Rating":
				setInt(&msPercent, p.value)
			case nsEXIF + "DateTimeOriginal":
				setString(&v.dates.Original, p.value)
			case nsXMP + "CreateDate":
				setString(&v.dates.Created, p.value)
			case nsXMP + "ModifyDate":
				setString(&v.dates.Modified, p.value)
			}
		}
	}
	if v.percent == nil {
		v.percent = msPercent
	}
	return v
}

func readXMPFallback(s string) xmpValues {
	var v xmpValues
	if m := reRating.FindStringSubmatch(s); m != nil {
		setInt(&v.rating, m[1]+m[2])
	}
	if m := rePercent.FindStringSubmatch(s); m != nil {
		setInt(&v.percent, m[1]+m[2])
	}
	return v
}

func setInt(dst **int, s string) {
	if *dst != nil {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		*dst = &n
	}
}

func setString(dst *string, s string) {
	if *dst == "" {
		*dst = strings.TrimSpace(s)
	}
}

type property struct {
	ns, name, value string
}

func descriptions(doc *etree.Document) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		if el.Tag == "Description" && el.NamespaceURI() == nsRDF {
			out = append(out, el)
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	walk(doc.Root())
	return out
}

func properties(desc *etree.Element) []property {
	var out []property
	for i := range desc.Attr {
		a := &desc.Attr[i]
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		out = append(out, property{ns: a.NamespaceURI(), name: a.Key, value: a.Value})
	}
	for _, c := range desc.ChildElements() {
		out = append(out, property{ns: c.NamespaceURI(), name: c.Tag, value: c.Text()})
	}
	return out
}

// updateXMP sets xmp:Rating and xmp:RatingPercent in packet, or in a fresh
// packet when packet is empty. Existing properties are replaced where they
// are; missing ones become attributes of the first rdf:Description. Other
// properties are left alone.
func updateXMP(packet []byte, rating int) ([]byte, error) {
	if len(packet) == 0 {
		packet = []byte(emptyPacket)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(packet); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrXMPParse, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrXMPParse)
	}

	descs := descriptions(doc)
	if len(descs) == 0 {
		return nil, ErrNoDescription
	}

	percent := strconv.Itoa(PercentFromRating(rating))
	for _, p := range [][2]string{
		{"Rating", strconv.Itoa(rating)},
		{"RatingPercent", percent},
	} {
		if !replaceProperty(descs, nsXMP, p[0], p[1]) {
			addAttribute(descs[0], nsXMP, "xmp", p[0], p[1])
		}
	}
	// Windows keeps its own percent copy; keep it in step when present.
	replaceProperty(descs, nsMSPhoto, "Rating", percent)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrXMPParse, err)
	}
	return out, nil
}

func replaceProperty(descs []*etree.Element, ns, name, value string) bool {
	found := false
	for _, desc := range descs {
		for i := range desc.Attr {
			a := &desc.Attr[i]
			if a.Key == name && a.Space != "xmlns" && a.NamespaceURI() == ns {
				a.Value = value
				found = true
			}
		}
		for _, c := range desc.ChildElements() {
			if c.Tag == name && c.NamespaceURI() == ns {
				c.SetText(value)
				found = true
			}
		}
	}
	return found
}

func addAttribute(desc *etree.Element, ns, defaultPrefix, name, value string) {
	prefix := prefixFor(desc, ns)
	if prefix == "" {
		prefix = defaultPrefix
		desc.CreateAttr("xmlns:"+prefix, ns)
	}
	desc.CreateAttr(prefix+":"+name, value)
}

// prefixFor finds the prefix bound to ns on el or an ancestor.
func prefixFor(el *etree.Element, ns string) string {
	for e := el; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if a.Space == "xmlns" && a.Value == ns {
				return a.Key
			}
		}
	}
	return ""
}
