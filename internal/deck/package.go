package deck

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"time"
)

// Content types of the package parts.
const (
	ctRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	ctXML           = "application/xml"
	ctPresentation  = "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"
	ctSlideMaster   = "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"
	ctSlideLayout   = "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"
	ctSlide         = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ctTheme         = "application/vnd.openxmlformats-officedocument.theme+xml"
	ctPresProps     = "application/vnd.openxmlformats-officedocument.presentationml.presProps+xml"
	ctViewProps     = "application/vnd.openxmlformats-officedocument.presentationml.viewProps+xml"
	ctTableStyles   = "application/vnd.openxmlformats-officedocument.presentationml.tableStyles+xml"
	ctCoreProps     = "application/vnd.openxmlformats-package.core-properties+xml"
	ctAppProps      = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
)

// Relationship types.
const (
	relOfficeDocument = nsRelationships + "/officeDocument"
	relExtendedProps  = nsRelationships + "/extended-properties"
	relCoreProps      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relSlideMaster    = nsRelationships + "/slideMaster"
	relSlideLayout    = nsRelationships + "/slideLayout"
	relSlide          = nsRelationships + "/slide"
	relTheme          = nsRelationships + "/theme"
	relPresProps      = nsRelationships + "/presProps"
	relViewProps      = nsRelationships + "/viewProps"
	relTableStyles    = nsRelationships + "/tableStyles"
)

// Part names.
const (
	partPresentation = "ppt/presentation.xml"
	partMaster       = "ppt/slideMasters/slideMaster1.xml"
	partTheme        = "ppt/theme/theme1.xml"
	partPresProps    = "ppt/presProps.xml"
	partViewProps    = "ppt/viewProps.xml"
	partTableStyles  = "ppt/tableStyles.xml"
	partCoreProps    = "docProps/core.xml"
	partAppProps     = "docProps/app.xml"
)

// Application is written to the extended properties of every package.
const Application = "opticdeck"

func layoutPartName(i int) string { return fmt.Sprintf("ppt/slideLayouts/slideLayout%d.xml", i+1) }
func slidePartName(i int) string  { return fmt.Sprintf("ppt/slides/slide%d.xml", i+1) }

// relsPartName returns the relationships part that belongs to a source part.
func relsPartName(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// relTarget returns target relative to the directory of source.
func relTarget(source, target string) string {
	srcDir := path.Dir(source)
	if srcDir == "." {
		return target
	}
	tgtDir, file := path.Split(target)
	tgtDir = path.Clean(tgtDir)
	if tgtDir == srcDir {
		return file
	}
	if path.Dir(srcDir) == path.Dir(tgtDir) {
		return "../" + path.Base(tgtDir) + "/" + file
	}
	if path.Dir(tgtDir) == srcDir {
		return path.Base(tgtDir) + "/" + file
	}
	return "/" + target
}

// relSet accumulates relationships of one source part, assigning rIds in order.
type relSet struct {
	source string
	rels   []xmlRelationship
}

func (r *relSet) add(typ, target string) string {
	id := fmt.Sprintf("rId%d", len(r.rels)+1)
	r.rels = append(r.rels, xmlRelationship{ID: id, Type: typ, Target: relTarget(r.source, target)})
	return id
}

type part struct {
	name string
	body []byte
}

// packageWriter lays out the parts of one deck.
type packageWriter struct {
	deck      *Deck
	parts     []part
	overrides []xmlOverride
	layouts   map[uint32]string // layout id → part name
}

// Write validates the deck and writes it to w as a .pptx package.
func (d *Deck) Write(w io.Writer) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validating deck: %w", err)
	}

	pw := &packageWriter{deck: d, layouts: make(map[uint32]string)}
	if err := pw.build(); err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	modified := d.Created
	if modified.IsZero() {
		modified = time.Now()
	}
	for _, p := range pw.parts {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("creating part %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.body); err != nil {
			return fmt.Errorf("writing part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing package: %w", err)
	}
	return nil
}

func (pw *packageWriter) addRaw(name, contentType string, body []byte) {
	pw.parts = append(pw.parts, part{name: name, body: body})
	if contentType != "" {
		pw.overrides = append(pw.overrides, xmlOverride{PartName: "/" + name, ContentType: contentType})
	}
}

func (pw *packageWriter) addXML(name, contentType string, v any) error {
	body, err := xml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	pw.addRaw(name, contentType, append([]byte(xmlHeader), body...))
	return nil
}

func (pw *packageWriter) addRels(rs *relSet) error {
	return pw.addXML(relsPartName(rs.source), "", xmlRelationships{Rels: rs.rels})
}

func (pw *packageWriter) build() error {
	d := pw.deck
	// [Content_Types].xml is written first but filled last.
	pw.parts = append(pw.parts, part{name: "[Content_Types].xml"})

	root := &relSet{source: ""}
	root.add(relOfficeDocument, partPresentation)
	root.add(relCoreProps, partCoreProps)
	root.add(relExtendedProps, partAppProps)
	if err := pw.addRels(root); err != nil {
		return err
	}

	if err := pw.buildProperties(); err != nil {
		return err
	}
	if err := pw.buildMaster(); err != nil {
		return err
	}

	pres := xmlPresentation{
		pmlNamespaces:   newPMLNamespaces(),
		SaveSubsetFonts: 1,
		SlideSize:       xmlSlideSize{Cx: d.Size.Width, Cy: d.Size.Height, Type: sizeType(d.Size)},
		NotesSize:       xmlExtent{Cx: d.Size.Height, Cy: d.Size.Width},
	}
	presRels := &relSet{source: partPresentation}
	masterRel := presRels.add(relSlideMaster, partMaster)
	pres.MasterIDs.IDs = []xmlPartID{{ID: d.Master.ID, RelID: masterRel}}

	if len(d.Slides) > 0 {
		pres.SlideIDs = &xmlSlideIDList{}
	}
	for i, s := range d.Slides {
		name := slidePartName(i)
		if err := pw.buildSlide(name, s); err != nil {
			return err
		}
		rid := presRels.add(relSlide, name)
		pres.SlideIDs.IDs = append(pres.SlideIDs.IDs, xmlPartID{ID: s.ID, RelID: rid})
	}

	presRels.add(relPresProps, partPresProps)
	presRels.add(relViewProps, partViewProps)
	presRels.add(relTheme, partTheme)
	presRels.add(relTableStyles, partTableStyles)

	if err := pw.addXML(partPresentation, ctPresentation, pres); err != nil {
		return err
	}
	if err := pw.addRels(presRels); err != nil {
		return err
	}
	pw.addRaw(partPresProps, ctPresProps, []byte(presPropsXML))
	pw.addRaw(partViewProps, ctViewProps, []byte(viewPropsXML))
	pw.addRaw(partTableStyles, ctTableStyles, []byte(tableStylesXML))
	pw.addRaw(partTheme, ctTheme, []byte(themeXML))

	types := xmlTypes{
		Defaults: []xmlDefault{
			{Extension: "rels", ContentType: ctRelationships},
			{Extension: "xml", ContentType: ctXML},
		},
		Overrides: pw.overrides,
	}
	body, err := xml.Marshal(types)
	if err != nil {
		return fmt.Errorf("marshaling content types: %w", err)
	}
	pw.parts[0].body = append([]byte(xmlHeader), body...)
	return nil
}

func sizeType(s Size) string {
	if s.Width == CanvasWidth && s.Height == CanvasHeight {
		return "screen4x3"
	}
	return ""
}

func (pw *packageWriter) buildProperties() error {
	d := pw.deck
	created := d.Created.UTC().Format(time.RFC3339)
	if d.Created.IsZero() {
		created = time.Now().UTC().Format(time.RFC3339)
	}
	core := xmlCoreProperties{
		CP:       nsCoreProps,
		DC:       nsDublinCore,
		DCTerms:  nsDCTerms,
		XSI:      nsXSI,
		Title:    d.Title,
		Creator:  d.Creator,
		Created:  xmlW3CDate{Type: "dcterms:W3CDTF", Value: created},
		Modified: xmlW3CDate{Type: "dcterms:W3CDTF", Value: created},
	}
	if err := pw.addXML(partCoreProps, ctCoreProps, core); err != nil {
		return err
	}
	app := xmlAppProperties{
		Application:        Application,
		PresentationFormat: "On-screen Show (4:3)",
		Slides:             len(d.Slides),
	}
	return pw.addXML(partAppProps, ctAppProps, app)
}

func (pw *packageWriter) buildMaster() error {
	m := pw.deck.Master
	masterRels := &relSet{source: partMaster}

	xm := xmlSlideMaster{
		pmlNamespaces: newPMLNamespaces(),
		CSld: xmlCommonSlideData{
			Bg:     &xmlBackground{BgRef: xmlBackgroundRef{Idx: 1001, SchemeClr: xmlSchemeClr{Val: "bg1"}}},
			SpTree: buildShapeTree(m.Shapes),
		},
		ClrMap: defaultColorMap(),
	}

	for i, l := range m.Layouts {
		name := layoutPartName(i)
		pw.layouts[l.ID] = name

		layoutRels := &relSet{source: name}
		layoutRels.add(relSlideMaster, partMaster)
		xl := xmlSlideLayout{
			pmlNamespaces: newPMLNamespaces(),
			Type:          "obj",
			Preserve:      1,
			CSld:          xmlCommonSlideData{Name: l.Name, SpTree: buildShapeTree(l.Shapes)},
		}
		if err := pw.addXML(name, ctSlideLayout, xl); err != nil {
			return err
		}
		if err := pw.addRels(layoutRels); err != nil {
			return err
		}

		rid := masterRels.add(relSlideLayout, name)
		xm.LayoutIDs.IDs = append(xm.LayoutIDs.IDs, xmlPartID{ID: l.ID, RelID: rid})
	}
	masterRels.add(relTheme, partTheme)

	if err := pw.addXML(partMaster, ctSlideMaster, xm); err != nil {
		return err
	}
	return pw.addRels(masterRels)
}

func (pw *packageWriter) buildSlide(name string, s *Slide) error {
	layoutPart, ok := pw.layouts[s.LayoutID]
	if !ok {
		return fmt.Errorf("slide %d: %w: %d", s.ID, ErrUnknownLayout, s.LayoutID)
	}
	rels := &relSet{source: name}
	rels.add(relSlideLayout, layoutPart)

	xs := xmlSlide{
		pmlNamespaces: newPMLNamespaces(),
		CSld:          xmlCommonSlideData{SpTree: buildShapeTree(s.Shapes)},
	}
	if err := pw.addXML(name, ctSlide, xs); err != nil {
		return err
	}
	return pw.addRels(rels)
}
