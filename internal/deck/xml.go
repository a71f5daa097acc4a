package deck

import (
	"encoding/xml"
	"strings"
)

// XML namespaces used by the package parts.
const (
	nsDrawing       = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPresentation  = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsCoreProps     = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	nsDublinCore    = "http://purl.org/dc/elements/1.1/"
	nsDCTerms       = "http://purl.org/dc/terms/"
	nsXSI           = "http://www.w3.org/2001/XMLSchema-instance"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// pmlNamespaces declares the a:, r: and p: prefixes on a PresentationML root element.
type pmlNamespaces struct {
	A string `xml:"xmlns:a,attr"`
	R string `xml:"xmlns:r,attr"`
	P string `xml:"xmlns:p,attr"`
}

func newPMLNamespaces() pmlNamespaces {
	return pmlNamespaces{A: nsDrawing, R: nsRelationships, P: nsPresentation}
}

// ---------------------------------------------------------------------------
// Package plumbing
// ---------------------------------------------------------------------------

type xmlTypes struct {
	XMLName   xml.Name      `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []xmlDefault  `xml:"Default"`
	Overrides []xmlOverride `xml:"Override"`
}

type xmlDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type xmlOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type xmlRelationships struct {
	XMLName xml.Name          `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Rels    []xmlRelationship `xml:"Relationship"`
}

type xmlRelationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type xmlCoreProperties struct {
	XMLName  xml.Name   `xml:"cp:coreProperties"`
	CP       string     `xml:"xmlns:cp,attr"`
	DC       string     `xml:"xmlns:dc,attr"`
	DCTerms  string     `xml:"xmlns:dcterms,attr"`
	XSI      string     `xml:"xmlns:xsi,attr"`
	Title    string     `xml:"dc:title"`
	Creator  string     `xml:"dc:creator"`
	Created  xmlW3CDate `xml:"dcterms:created"`
	Modified xmlW3CDate `xml:"dcterms:modified"`
}

type xmlW3CDate struct {
	Type  string `xml:"xsi:type,attr"`
	Value string `xml:",chardata"`
}

type xmlAppProperties struct {
	XMLName            xml.Name `xml:"http://schemas.openxmlformats.org/officeDocument/2006/extended-properties Properties"`
	Application        string   `xml:"Application"`
	PresentationFormat string   `xml:"PresentationFormat"`
	Slides             int      `xml:"Slides"`
}

// ---------------------------------------------------------------------------
// Presentation
// ---------------------------------------------------------------------------

type xmlPresentation struct {
	XMLName xml.Name `xml:"p:presentation"`
	pmlNamespaces
	SaveSubsetFonts int             `xml:"saveSubsetFonts,attr"`
	MasterIDs       xmlMasterIDList `xml:"p:sldMasterIdLst"`
	SlideIDs        *xmlSlideIDList `xml:"p:sldIdLst"`
	SlideSize       xmlSlideSize    `xml:"p:sldSz"`
	NotesSize       xmlExtent       `xml:"p:notesSz"`
}

type xmlMasterIDList struct {
	IDs []xmlPartID `xml:"p:sldMasterId"`
}

type xmlSlideIDList struct {
	IDs []xmlPartID `xml:"p:sldId"`
}

type xmlLayoutIDList struct {
	IDs []xmlPartID `xml:"p:sldLayoutId"`
}

type xmlPartID struct {
	ID    uint32 `xml:"id,attr"`
	RelID string `xml:"r:id,attr"`
}

type xmlSlideSize struct {
	Cx   int64  `xml:"cx,attr"`
	Cy   int64  `xml:"cy,attr"`
	Type string `xml:"type,attr,omitempty"`
}

// ---------------------------------------------------------------------------
// Master, layout, slide
// ---------------------------------------------------------------------------

type xmlSlideMaster struct {
	XMLName xml.Name `xml:"p:sldMaster"`
	pmlNamespaces
	CSld      xmlCommonSlideData `xml:"p:cSld"`
	ClrMap    xmlColorMap        `xml:"p:clrMap"`
	LayoutIDs xmlLayoutIDList    `xml:"p:sldLayoutIdLst"`
}

type xmlSlideLayout struct {
	XMLName xml.Name `xml:"p:sldLayout"`
	pmlNamespaces
	Type      string              `xml:"type,attr"`
	Preserve  int                 `xml:"preserve,attr"`
	CSld      xmlCommonSlideData  `xml:"p:cSld"`
	ClrMapOvr xmlColorMapOverride `xml:"p:clrMapOvr"`
}

type xmlSlide struct {
	XMLName xml.Name `xml:"p:sld"`
	pmlNamespaces
	CSld      xmlCommonSlideData  `xml:"p:cSld"`
	ClrMapOvr xmlColorMapOverride `xml:"p:clrMapOvr"`
}

type xmlCommonSlideData struct {
	Name   string         `xml:"name,attr,omitempty"`
	Bg     *xmlBackground `xml:"p:bg"`
	SpTree xmlShapeTree   `xml:"p:spTree"`
}

type xmlBackground struct {
	BgRef xmlBackgroundRef `xml:"p:bgRef"`
}

type xmlBackgroundRef struct {
	Idx       int          `xml:"idx,attr"`
	SchemeClr xmlSchemeClr `xml:"a:schemeClr"`
}

type xmlSchemeClr struct {
	Val string `xml:"val,attr"`
}

type xmlColorMap struct {
	Bg1      string `xml:"bg1,attr"`
	Tx1      string `xml:"tx1,attr"`
	Bg2      string `xml:"bg2,attr"`
	Tx2      string `xml:"tx2,attr"`
	Accent1  string `xml:"accent1,attr"`
	Accent2  string `xml:"accent2,attr"`
	Accent3  string `xml:"accent3,attr"`
	Accent4  string `xml:"accent4,attr"`
	Accent5  string `xml:"accent5,attr"`
	Accent6  string `xml:"accent6,attr"`
	Hlink    string `xml:"hlink,attr"`
	FolHlink string `xml:"folHlink,attr"`
}

func defaultColorMap() xmlColorMap {
	return xmlColorMap{
		Bg1: "lt1", Tx1: "dk1", Bg2: "lt2", Tx2: "dk2",
		Accent1: "accent1", Accent2: "accent2", Accent3: "accent3",
		Accent4: "accent4", Accent5: "accent5", Accent6: "accent6",
		Hlink: "hlink", FolHlink: "folHlink",
	}
}

type xmlColorMapOverride struct {
	MasterClrMapping struct{} `xml:"a:masterClrMapping"`
}

// ---------------------------------------------------------------------------
// Shape tree
// ---------------------------------------------------------------------------

type xmlShapeTree struct {
	NvGrpSpPr xmlNvGrpSpPr `xml:"p:nvGrpSpPr"`
	GrpSpPr   xmlGrpSpPr   `xml:"p:grpSpPr"`
	Shapes    []xmlShape   `xml:"p:sp"`
}

type xmlNvGrpSpPr struct {
	CNvPr      xmlCNvPr `xml:"p:cNvPr"`
	CNvGrpSpPr struct{} `xml:"p:cNvGrpSpPr"`
	NvPr       struct{} `xml:"p:nvPr"`
}

// xmlCNvPr carries the non-visual id and name. Both attributes are always
// written, the name even when empty.
type xmlCNvPr struct {
	ID   uint32 `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type xmlGrpSpPr struct {
	Xfrm xmlGroupXfrm `xml:"a:xfrm"`
}

type xmlGroupXfrm struct {
	Off   xmlOffset `xml:"a:off"`
	Ext   xmlExtent `xml:"a:ext"`
	ChOff xmlOffset `xml:"a:chOff"`
	ChExt xmlExtent `xml:"a:chExt"`
}

type xmlOffset struct {
	X int64 `xml:"x,attr"`
	Y int64 `xml:"y,attr"`
}

type xmlExtent struct {
	Cx int64 `xml:"cx,attr"`
	Cy int64 `xml:"cy,attr"`
}

type xmlShape struct {
	NvSpPr xmlNvSpPr   `xml:"p:nvSpPr"`
	SpPr   xmlSpPr     `xml:"p:spPr"`
	TxBody xmlTextBody `xml:"p:txBody"`
}

type xmlNvSpPr struct {
	CNvPr   xmlCNvPr   `xml:"p:cNvPr"`
	CNvSpPr xmlCNvSpPr `xml:"p:cNvSpPr"`
	NvPr    xmlNvPr    `xml:"p:nvPr"`
}

type xmlCNvSpPr struct {
	SpLocks xmlSpLocks `xml:"a:spLocks"`
}

type xmlSpLocks struct {
	NoGrp int `xml:"noGrp,attr"`
}

type xmlNvPr struct {
	Ph xmlPlaceholder `xml:"p:ph"`
}

type xmlPlaceholder struct {
	Type string  `xml:"type,attr,omitempty"`
	Idx  *uint32 `xml:"idx,attr,omitempty"`
}

type xmlSpPr struct {
	Xfrm xmlXfrm `xml:"a:xfrm"`
}

type xmlXfrm struct {
	Off xmlOffset `xml:"a:off"`
	Ext xmlExtent `xml:"a:ext"`
}

type xmlTextBody struct {
	BodyPr     struct{}       `xml:"a:bodyPr"`
	LstStyle   struct{}       `xml:"a:lstStyle"`
	Paragraphs []xmlParagraph `xml:"a:p"`
}

type xmlParagraph struct {
	Runs       []xmlRun     `xml:"a:r"`
	EndParaRPr *xmlRunProps `xml:"a:endParaRPr"`
}

type xmlRun struct {
	RPr  xmlRunProps `xml:"a:rPr"`
	Text string      `xml:"a:t"`
}

type xmlRunProps struct {
	Lang  string `xml:"lang,attr"`
	Dirty int    `xml:"dirty,attr"`
}

const textLang = "en-US"

// bodyIdx is the placeholder index linking body shapes across master, layout and slide.
var bodyIdx uint32 = 1

func buildShapeTree(shapes []Shape) xmlShapeTree {
	tree := xmlShapeTree{
		NvGrpSpPr: xmlNvGrpSpPr{CNvPr: xmlCNvPr{ID: RootShapeID, Name: ""}},
	}
	for _, sh := range shapes {
		tree.Shapes = append(tree.Shapes, buildShape(sh))
	}
	return tree
}

func buildShape(sh Shape) xmlShape {
	ph := xmlPlaceholder{}
	switch sh.Placeholder {
	case PlaceholderTitle:
		ph.Type = "title"
	case PlaceholderBody:
		idx := bodyIdx
		ph.Idx = &idx
	}
	return xmlShape{
		NvSpPr: xmlNvSpPr{
			CNvPr:   xmlCNvPr{ID: sh.ID, Name: sh.Name},
			CNvSpPr: xmlCNvSpPr{SpLocks: xmlSpLocks{NoGrp: 1}},
			NvPr:    xmlNvPr{Ph: ph},
		},
		SpPr: xmlSpPr{Xfrm: xmlXfrm{
			Off: xmlOffset{X: sh.Frame.X, Y: sh.Frame.Y},
			Ext: xmlExtent{Cx: sh.Frame.Width, Cy: sh.Frame.Height},
		}},
		TxBody: buildTextBody(sh.Text),
	}
}

// buildTextBody renders one paragraph per line. A newline inside a:t is not
// a line break in DrawingML, so the text is split here and nowhere else.
func buildTextBody(text string) xmlTextBody {
	body := xmlTextBody{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			body.Paragraphs = append(body.Paragraphs, xmlParagraph{
				EndParaRPr: &xmlRunProps{Lang: textLang},
			})
			continue
		}
		body.Paragraphs = append(body.Paragraphs, xmlParagraph{
			Runs: []xmlRun{{RPr: xmlRunProps{Lang: textLang}, Text: line}},
		})
	}
	return body
}
