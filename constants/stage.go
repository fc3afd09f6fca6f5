package constants

// Stage numbers the ordered phases of the pipeline. Each stage owns one
// durable output directory; stage N consumes stage N-1's directory.
type Stage int

const (
	StageDownload    Stage = 1 // fetch daily report-log PDFs
	StageConvert     Stage = 2 // PDF -> markdown text
	StageExtract     Stage = 3 // markdown -> structured per-day CSV
	StageEnrich      Stage = 4 // geocode + categorize incidents
	StageConsolidate Stage = 5 // merge, filter, publish final dataset
)

const (
	FirstStage = StageDownload
	LastStage  = StageConsolidate
)

var stageNames = map[Stage]string{
	StageDownload:    "download",
	StageConvert:     "convert",
	StageExtract:     "extract",
	StageEnrich:      "enrich",
	StageConsolidate: "consolidate",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Stage) Valid() bool {
	return s >= FirstStage && s <= LastStage
}

// DirName is the stage's output directory name under the data root.
var stageDirs = map[Stage]string{
	StageDownload:    "raw_pdfs",
	StageConvert:     "markdown",
	StageExtract:     "csv",
	StageEnrich:      "enriched",
	StageConsolidate: "website",
}

func (s Stage) DirName() string {
	return stageDirs[s]
}
