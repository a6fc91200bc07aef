package bucket

import (
	"fmt"
	"time"
)

// Kind names a sketch family in the KV key namespace.
type Kind string

const (
	KindHLL     Kind = "hll"
	KindBloom   Kind = "bloom"
	KindCMS     Kind = "cms"
	KindTopK    Kind = "topk"
	KindMoments Kind = "moments"
)

// Key builds the sketch key <kind>:<metric>:<system>:<window>:<bucket-label>
// for ts bucketed at w.
func Key(kind Kind, metric, system string, w Window, ts time.Time) (string, error) {
	label, err := Bucket(ts, w)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", kind, metric, system, w, label), nil
}

// EventStreamKey is the pub/sub channel every ingested event is published on.
func EventStreamKey() string {
	return "events:stream"
}

// ComplianceSnapshotKey is the daily compliance snapshot key for date.
func ComplianceSnapshotKey(date time.Time) string {
	return fmt.Sprintf("compliance:snapshot:%s", date.UTC().Format("2006-01-02"))
}
