package harvest

import "github.com/use-agent/bibharvest/models"

// Stage identifies where in one iteration the navigator is. An iteration
// walks entry → letter → author → export → collect; reaching the end counts
// one author.
type Stage int

const (
	StageEntry Stage = iota
	StageLetter
	StageAuthor
	StageExport
	StageCollect
)

func (s Stage) String() string {
	switch s {
	case StageEntry:
		return "entry"
	case StageLetter:
		return "letter"
	case StageAuthor:
		return "author"
	case StageExport:
		return "export"
	case StageCollect:
		return "collect"
	default:
		return "unknown"
	}
}

// Fatal reports whether a failure at this stage ends the run. Failing to get
// from the entry page to a letter index means the site itself is unusable;
// later stages depend on a randomly chosen page and are retried.
func (s Stage) Fatal() bool {
	return s == StageEntry || s == StageLetter
}

// fatal reports whether err was raised at a stage that ends the run.
func fatal(err *models.HarvestError) bool {
	for _, s := range []Stage{StageEntry, StageLetter, StageAuthor, StageExport, StageCollect} {
		if s.String() == err.Stage {
			return s.Fatal()
		}
	}
	return false
}
