// Package calibration implements confidence calibration: mapping a raw,
// model-produced confidence score to a calibrated probability of
// correctness, plus reliability reporting (ECE/MCE) over a labeled
// evaluation set.
//
// The registry itself is loadable-once and immutable after load: callers
// build one and pass it in via Profile.Calibration.Registry, never
// through a package global.
package calibration

import (
	"math"
	"sort"
)

// Sample is one (raw confidence, correctness) observation used to fit or
// evaluate a Model.
type Sample struct {
	RawConfidence float64
	Correct       bool
}

// Model maps a raw confidence score to a calibrated one via isotonic
// regression: a non-decreasing step function fit to bucket means, found
// with the pool-adjacent-violators algorithm (PAVA).
type Model struct {
	// breakpoints[i] is the highest raw confidence of step i: values[i]
	// applies to raw scores above breakpoints[i-1] up to and including
	// breakpoints[i]. Both slices are the same length and sorted by
	// breakpoint ascending.
	breakpoints []float64
	values      []float64
}

// Fit builds a Model from labeled samples using isotonic regression.
// Samples are first aggregated by raw score rounded to two decimals,
// with each aggregate weighted by its sample count; the weighted
// aggregates are then pooled so the fitted values are monotonically
// non-decreasing.
func Fit(samples []Sample) *Model {
	if len(samples) == 0 {
		return &Model{}
	}

	type aggregate struct {
		sum   float64
		count int
	}
	byScore := make(map[float64]*aggregate)
	for _, s := range samples {
		key := math.Round(s.RawConfidence*100) / 100
		a := byScore[key]
		if a == nil {
			a = &aggregate{}
			byScore[key] = a
		}
		if s.Correct {
			a.sum++
		}
		a.count++
	}
	scores := make([]float64, 0, len(byScore))
	for k := range byScore {
		scores = append(scores, k)
	}
	sort.Float64s(scores)

	type block struct {
		sum   float64
		count int
		x     float64 // representative (max) raw confidence in this block
	}
	var blocks []block
	for _, x := range scores {
		a := byScore[x]
		blocks = append(blocks, block{sum: a.sum, count: a.count, x: x})
		// Pool-adjacent-violators: merge backward while the running
		// means violate monotonicity.
		for len(blocks) > 1 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.sum/float64(prev.count) <= last.sum/float64(last.count) {
				break
			}
			merged := block{
				sum:   prev.sum + last.sum,
				count: prev.count + last.count,
				x:     last.x,
			}
			blocks = append(blocks[:len(blocks)-2], merged)
		}
	}

	m := &Model{}
	for _, b := range blocks {
		m.breakpoints = append(m.breakpoints, b.x)
		m.values = append(m.values, b.sum/float64(b.count))
	}
	return m
}

// FromBreakpoints reconstructs a Model from its already-fit step
// function, for a store that persisted a Model's breakpoints/values and
// needs to load it back without refitting from raw samples.
func FromBreakpoints(breakpoints, values []float64) *Model {
	return &Model{breakpoints: breakpoints, values: values}
}

// Breakpoints returns the model's fitted step-function thresholds, for a
// store persisting a Model.
func (m *Model) Breakpoints() []float64 {
	if m == nil {
		return nil
	}
	return m.breakpoints
}

// Values returns the model's fitted step-function outputs, parallel to
// Breakpoints, for a store persisting a Model.
func (m *Model) Values() []float64 {
	if m == nil {
		return nil
	}
	return m.values
}

// Calibrate returns the calibrated probability for a raw confidence
// score: the value of the step function at the first breakpoint ≥ raw,
// or the model's last value if raw exceeds every breakpoint.
func (m *Model) Calibrate(raw float64) float64 {
	if m == nil || len(m.breakpoints) == 0 {
		return raw
	}
	idx := sort.SearchFloat64s(m.breakpoints, raw)
	if idx >= len(m.values) {
		idx = len(m.values) - 1
	}
	return m.values[idx]
}

// ReliabilityReport summarizes calibration quality over a held-out
// sample set via equal-frequency (quantile) binning, the standard ECE/MCE
// construction.
type ReliabilityReport struct {
	Bins []ReliabilityBin
	ECE  float64
	MCE  float64
}

// ReliabilityBin is one quantile bin's observed-vs-predicted accuracy.
type ReliabilityBin struct {
	MeanPredicted float64
	MeanObserved  float64
	Count         int
}

// Evaluate computes a ReliabilityReport for m against samples, using
// numBins equal-frequency bins (falling back to fewer bins if there are
// not enough samples to fill numBins).
func Evaluate(m *Model, samples []Sample, numBins int) ReliabilityReport {
	if len(samples) == 0 || numBins <= 0 {
		return ReliabilityReport{}
	}
	type scored struct {
		predicted float64
		observed  float64
	}
	scoredSamples := make([]scored, len(samples))
	for i, s := range samples {
		obs := 0.0
		if s.Correct {
			obs = 1.0
		}
		scoredSamples[i] = scored{predicted: m.Calibrate(s.RawConfidence), observed: obs}
	}
	sort.Slice(scoredSamples, func(i, j int) bool { return scoredSamples[i].predicted < scoredSamples[j].predicted })

	if numBins > len(scoredSamples) {
		numBins = len(scoredSamples)
	}
	binSize := len(scoredSamples) / numBins

	var report ReliabilityReport
	n := len(scoredSamples)
	for b := 0; b < numBins; b++ {
		start := b * binSize
		end := start + binSize
		if b == numBins-1 {
			end = n
		}
		if start >= end {
			continue
		}
		var predSum, obsSum float64
		for _, s := range scoredSamples[start:end] {
			predSum += s.predicted
			obsSum += s.observed
		}
		count := end - start
		bin := ReliabilityBin{
			MeanPredicted: predSum / float64(count),
			MeanObserved:  obsSum / float64(count),
			Count:         count,
		}
		report.Bins = append(report.Bins, bin)

		gap := absf(bin.MeanPredicted - bin.MeanObserved)
		report.ECE += gap * float64(count) / float64(n)
		if gap > report.MCE {
			report.MCE = gap
		}
	}
	return report
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Registry is the caller-owned, loadable-once calibration store the core
// consults through Profile.Calibration.Registry. The core never writes
// through it; only reads via Model.
type Registry interface {
	// ModelFor returns the calibration Model for a named field (e.g.
	// "total_amount"), or nil if none has been fit for that field.
	ModelFor(field string) *Model
}

// MapRegistry is a simple in-memory Registry built once from a map of
// pre-fit models, the common case for a caller loading a calibration
// artefact at startup and holding it for the process lifetime.
type MapRegistry struct {
	models map[string]*Model
}

// NewMapRegistry builds an immutable Registry from models. The caller
// must not mutate models after this call; NewMapRegistry keeps the map
// itself (not a copy) under the assumption it is not retained elsewhere,
// matching the "immutable after load" contract.
func NewMapRegistry(models map[string]*Model) *MapRegistry {
	return &MapRegistry{models: models}
}

// ModelFor implements Registry.
func (r *MapRegistry) ModelFor(field string) *Model {
	if r == nil {
		return nil
	}
	return r.models[field]
}

// wildcardSupplier is the fallback-chain key meaning "any supplier".
const wildcardSupplier = "*"

// supplierFieldKey identifies one (supplier, field) fit slot in a
// SupplierFieldRegistry.
type supplierFieldKey struct {
	Supplier string
	Field    string
}

// AdaptiveMinSamples are the minimum sample counts required to fit a
// model at each fallback-chain level, most specific first: (supplier,
// field), (supplier, *), (*, field), (*, *).
var AdaptiveMinSamples = [4]int{200, 150, 100, 50}

// SupplierFieldRegistry is a Registry that additionally supports the
// (supplier, field) -> (supplier, *) -> (*, field) -> (*, *) fallback
// chain, with adaptive minimum-sample thresholds per level.
// It degrades gracefully: a lookup that finds nothing at any level
// returns nil, and the caller falls back to the field's raw confidence.
type SupplierFieldRegistry struct {
	models map[supplierFieldKey]*Model
}

// NewSupplierFieldRegistry builds an immutable registry from samples
// grouped by (supplier, field), fitting a Model at each group that meets
// its fallback level's AdaptiveMinSamples threshold. Groups below
// threshold at every applicable level are simply absent — calibration is
// optional and must degrade to raw confidences.
func NewSupplierFieldRegistry(samplesBySupplierField map[[2]string][]Sample) *SupplierFieldRegistry {
	r := &SupplierFieldRegistry{models: make(map[supplierFieldKey]*Model)}

	bySupplierAllFields := make(map[string][]Sample)
	byFieldAllSuppliers := make(map[string][]Sample)
	var allSamples []Sample

	for key, samples := range samplesBySupplierField {
		supplier, field := key[0], key[1]
		if len(samples) >= AdaptiveMinSamples[0] {
			r.models[supplierFieldKey{supplier, field}] = Fit(samples)
		}
		bySupplierAllFields[supplier] = append(bySupplierAllFields[supplier], samples...)
		byFieldAllSuppliers[field] = append(byFieldAllSuppliers[field], samples...)
		allSamples = append(allSamples, samples...)
	}
	for supplier, samples := range bySupplierAllFields {
		if len(samples) >= AdaptiveMinSamples[1] {
			r.models[supplierFieldKey{supplier, wildcardSupplier}] = Fit(samples)
		}
	}
	for field, samples := range byFieldAllSuppliers {
		if len(samples) >= AdaptiveMinSamples[2] {
			r.models[supplierFieldKey{wildcardSupplier, field}] = Fit(samples)
		}
	}
	if len(allSamples) >= AdaptiveMinSamples[3] {
		r.models[supplierFieldKey{wildcardSupplier, wildcardSupplier}] = Fit(allSamples)
	}
	return r
}

// ModelForSupplier walks the fallback chain (supplier, field) ->
// (supplier, *) -> (*, field) -> (*, *) and returns the first Model
// found, or nil if no level has one.
func (r *SupplierFieldRegistry) ModelForSupplier(supplier, field string) *Model {
	if r == nil {
		return nil
	}
	for _, key := range [4]supplierFieldKey{
		{supplier, field},
		{supplier, wildcardSupplier},
		{wildcardSupplier, field},
		{wildcardSupplier, wildcardSupplier},
	} {
		if m, ok := r.models[key]; ok {
			return m
		}
	}
	return nil
}

// ModelFor implements Registry using only the supplier-agnostic levels
// of the fallback chain ((*, field) then (*, *)), for callers that don't
// carry a supplier through to the calibration call site.
func (r *SupplierFieldRegistry) ModelFor(field string) *Model {
	return r.ModelForSupplier(wildcardSupplier, field)
}

// RecalibrationThreshold is tau(N), the ECE threshold above which
// recalibration is suggested: 0.08 below 200 samples, 0.06 below 500,
// else 0.05.
func RecalibrationThreshold(n int) float64 {
	switch {
	case n < 200:
		return 0.08
	case n < 500:
		return 0.06
	default:
		return 0.05
	}
}

// SuggestRecalibration reports whether a ReliabilityReport's ECE exceeds
// RecalibrationThreshold(n), and only when at least 5 bins had data — a
// report with fewer populated bins is too coarse to act on.
func SuggestRecalibration(report ReliabilityReport, n int) bool {
	populated := 0
	for _, b := range report.Bins {
		if b.Count > 0 {
			populated++
		}
	}
	if populated < 5 {
		return false
	}
	return report.ECE > RecalibrationThreshold(n)
}
