package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// mappingVersion changes whenever buildIndexMapping does; a mismatch on disk forces a rebuild.
const mappingVersion = "lending-1"

// buildIndexMapping maps book documents: stemmed English text for title and
// description, simple analysis for author names, keyword fields for filters.
func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = en.AnalyzerName
	title.Store = true
	title.IncludeTermVectors = true
	doc.AddFieldMappingsAt(fieldTitle, title)

	author := bleve.NewTextFieldMapping()
	author.Analyzer = simple.Name
	author.Store = true
	author.IncludeTermVectors = true
	doc.AddFieldMappingsAt(fieldAuthor, author)

	desc := bleve.NewTextFieldMapping()
	desc.Analyzer = en.AnalyzerName
	desc.Store = false
	doc.AddFieldMappingsAt(fieldDescription, desc)

	for _, name := range []string{fieldCategory, fieldSortTitle, fieldSortAuthor} {
		kw := bleve.NewTextFieldMapping()
		kw.Analyzer = keyword.Name
		kw.Store = true
		doc.AddFieldMappingsAt(name, kw)
	}

	year := bleve.NewNumericFieldMapping()
	year.Store = true
	doc.AddFieldMappingsAt(fieldYear, year)

	created := bleve.NewNumericFieldMapping()
	created.Store = true
	doc.AddFieldMappingsAt(fieldCreatedAt, created)

	im.AddDocumentMapping("_default", doc)
	return im
}
