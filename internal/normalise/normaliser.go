// Package normalise converts raw history ClassAds into flat documents
// ready for bulk delivery. Normalisation is a pure, deterministic,
// total function: malformed attrs are coerced or dropped, never raised.
// A Normaliser holds no mutable state and is safe for unsynchronised
// concurrent use.
package normalise

import (
	"fmt"
	"strings"

	"github.com/gridops/condor-spider/internal/core/domain"
)

// maxStringLen caps string field lengths at the destination.
const maxStringLen = 256

// Normaliser converts ClassAds to documents.
type Normaliser struct {
	// launchTime is the last-resort RecordTime for ads that carry no
	// usable completion timestamp. Fixed at construction so repeated
	// calls stay deterministic.
	launchTime int64
}

// New returns a Normaliser whose RecordTime fallback is launchTime
// (epoch seconds, typically process start).
func New(launchTime int64) *Normaliser {
	return &Normaliser{launchTime: launchTime}
}

// Normalise converts one ad from a source of the given kind.
// Ads missing their identity attribute (GlobalJobId for schedd history,
// Machine for startd history) are discarded: the returned error wraps
// domain.ErrRecordDiscarded and the document is nil.
func (n *Normaliser) Normalise(ad *domain.ClassAd, kind domain.SourceKind) (*domain.Document, error) {
	if ad == nil {
		return nil, fmt.Errorf("%w: nil ad", domain.ErrRecordDiscarded)
	}
	// DAGMan ROOT placeholder ads describe no job of their own.
	if tt := ad.Lookup("TaskType"); tt.Kind == domain.ValueString && tt.Str == "ROOT" {
		return nil, fmt.Errorf("%w: ROOT task", domain.ErrRecordDiscarded)
	}

	identity, err := identityOf(ad, kind)
	if err != nil {
		return nil, err
	}

	recordTime := n.recordTime(ad, kind)

	fields := make(map[string]any, ad.Len()+8)
	fields["RecordTime"] = recordTime
	fields["ScheddName"] = strings.SplitN(stringOr(ad, "GlobalJobId", "UNKNOWN"), "#", 2)[0]

	remoteHost := stringOr(ad, "RemoteHost", stringOr(ad, "LastRemoteHost", "UNKNOWN@UNKNOWN"))
	fields["StartdSlot"] = strings.SplitN(remoteHost, "@", 2)[0]
	fields["StartdName"] = remoteHost[strings.LastIndex(remoteHost, "@")+1:]

	fields["Status"] = codeName(ad, "JobStatus", jobStatusNames)
	fields["Universe"] = codeName(ad, "JobUniverse", jobUniverseNames)

	convertAttrs(ad, fields)

	return &domain.Document{
		ID:     fmt.Sprintf("%s#%d", identity, recordTime),
		Time:   recordTime,
		Fields: fields,
	}, nil
}

// identityOf extracts the mandatory identity attribute for the kind.
func identityOf(ad *domain.ClassAd, kind domain.SourceKind) (string, error) {
	attr := "GlobalJobId"
	if kind == domain.KindStartd {
		attr = "Machine"
	}
	v, ok := ad.Get(attr)
	if !ok || v.Kind == domain.ValueUndefined || v.AsString() == "" {
		return "", fmt.Errorf("%w: missing %s", domain.ErrRecordDiscarded, attr)
	}
	return v.AsString(), nil
}

// recordTime derives the record boundary timestamp.
//
// Jobs in a terminal state use CompletionDate, then EnteredCurrentStatus.
// Startd ads use LastHeardFrom. Everything else falls back to the
// normaliser's launch time.
func (n *Normaliser) recordTime(ad *domain.ClassAd, kind domain.SourceKind) int64 {
	if kind == domain.KindStartd {
		if t, ok := ad.Lookup("LastHeardFrom").AsInt(); ok && t > 0 {
			return t
		}
		return n.launchTime
	}

	if status, ok := ad.Lookup("JobStatus").AsInt(); ok {
		// Removed, Completed or Error.
		if status == 3 || status == 4 || status == 6 {
			if t, ok := ad.Lookup("CompletionDate").AsInt(); ok && t > 0 {
				return t
			}
			if t, ok := ad.Lookup("EnteredCurrentStatus").AsInt(); ok && t > 0 {
				return t
			}
		}
	}
	return n.launchTime
}

// convertAttrs walks every attr of the ad and stores its typed
// rendering into fields, applying the attr tables and the fallback
// coercion rules.
func convertAttrs(ad *domain.ClassAd, fields map[string]any) {
	for _, rawName := range ad.Names() {
		name := caseNormalise(rawName)
		if _, ok := ignoreAttrs[name]; ok {
			continue
		}

		v, _ := ad.Get(rawName)
		switch v.Kind {
		case domain.ValueUndefined:
			continue
		case domain.ValueExpr:
			// Unevaluable expressions are kept raw under a marker name
			// so they map to an unindexed keyword.
			fields[name+"_EXPR"] = truncate(v.Str)
			continue
		}

		switch {
		case inSet(name, textAttrs) || inSet(name, indexedKeywordAttrs) || inSet(name, noindexKeywordAttrs):
			fields[name] = truncate(v.AsString())

		case inSet(name, floatAttrs):
			if f, ok := v.AsReal(); ok {
				fields[name] = f
			} else {
				fields[name+"_STRING"] = truncate(v.AsString())
			}

		case inSet(name, intAttrs) || reProvisioned.MatchString(name) || reResourceReq.MatchString(name):
			if i, ok := v.AsInt(); ok {
				fields[name] = i
			} else {
				fields[name+"_STRING"] = truncate(v.AsString())
			}

		case inSet(name, boolAttrs) || reTargetBool.MatchString(name):
			if b, ok := v.AsBool(); ok {
				fields[name] = b
			} else {
				fields[name+"_STRING"] = truncate(v.AsString())
			}

		case inSet(name, dateAttrs) || reDateAttr.MatchString(name):
			if t, ok := v.AsInt(); ok {
				if t == 0 {
					continue
				}
				fields[name] = t
			} else {
				fields[name+"_STRING"] = truncate(v.AsString())
			}

		default:
			fields[name] = truncate(v.AsString())
		}
	}
}

// caseNormalise maps an attr name to its canonical casing. Known attrs
// get their table casing, auto-typed attrs get readable camel casing,
// everything else is lowercased (destination field names are
// case-sensitive).
func caseNormalise(attr string) string {
	if known, ok := knownAttrCase[foldCase(attr)]; ok {
		return known
	}

	for _, re := range caseAutoRes {
		if m := re.FindStringSubmatch(attr); m != nil {
			var b strings.Builder
			for _, group := range m[1:] {
				b.WriteString(capitalise(group))
			}
			return b.String()
		}
	}

	return foldCase(attr)
}

func inSet(name string, s map[string]struct{}) bool {
	_, ok := s[name]
	return ok
}

func stringOr(ad *domain.ClassAd, attr, fallback string) string {
	if v, ok := ad.Get(attr); ok && v.Kind != domain.ValueUndefined {
		if s := v.AsString(); s != "" {
			return s
		}
	}
	return fallback
}

func codeName(ad *domain.ClassAd, attr string, names map[int64]string) string {
	if code, ok := ad.Lookup(attr).AsInt(); ok {
		if name, ok := names[code]; ok {
			return name
		}
	}
	return "Unknown"
}

// truncate caps strings at maxStringLen runes, marking the cut with an
// ellipsis like the destination mappings expect.
func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxStringLen {
		return s
	}
	return string(r[:maxStringLen-3]) + "..."
}

// capitalise upper-cases the first rune and lower-cases the rest.
func capitalise(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}

func foldCase(s string) string {
	return strings.ToLower(s)
}
