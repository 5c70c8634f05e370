// Package scoregroup implements the per-score-group candidate selection
// pipeline: assemble the fragment and isotope ion sets, extract
// and smooth their dense windows, pick peaks in the fused score map, and
// emit ranked candidates.
package scoregroup

import (
	"fmt"
	"math"

	"github.com/example/diaselect/internal/config"
	"github.com/example/diaselect/internal/fourier"
	"github.com/example/diaselect/internal/iongroup"
	"github.com/example/diaselect/internal/kernel"
	"github.com/example/diaselect/internal/model"
	"github.com/example/diaselect/internal/peak"
	"github.com/example/diaselect/internal/rawindex"
	"github.com/example/diaselect/internal/runtime/tensor"
	"github.com/example/diaselect/internal/window"
)

// scoreMapEpsilon is added to each side's normalizing mean before dividing,
// so a near-zero window never blows up into an unbounded score.
const scoreMapEpsilon = 0.001

// Observer receives diagnostic callbacks as score groups are processed. The
// zero value of NoopObserver discards every event; callers that need
// tracing implement Observer directly.
type Observer interface {
	// OnDegenerateWindow is called when a score group could not produce a
	// window wide enough to smooth and therefore contributes no candidates.
	OnDegenerateWindow(sg model.ScoreGroup, reason string)

	// OnCandidates is called with the candidates emitted for sg, after
	// ranking.
	OnCandidates(sg model.ScoreGroup, candidates []model.Candidate)
}

// NoopObserver implements Observer with no-op methods.
type NoopObserver struct{}

func (NoopObserver) OnDegenerateWindow(model.ScoreGroup, string)        {}
func (NoopObserver) OnCandidates(model.ScoreGroup, []model.Candidate) {}

// Engine runs the per-score-group pipeline against one run's raw index and
// flat fragment table.
type Engine struct {
	Index     *rawindex.RawIndex
	Fragments []model.Fragment
	Config    config.Config
	Observer  Observer
}

// New builds an Engine. obs may be nil, in which case diagnostics are
// discarded.
func New(idx *rawindex.RawIndex, fragments []model.Fragment, cfg config.Config, obs Observer) *Engine {
	if obs == nil {
		obs = NoopObserver{}
	}

	return &Engine{Index: idx, Fragments: fragments, Config: cfg, Observer: obs}
}

// Process runs the selection pipeline for one score group and returns its
// candidates, ranked by fused score descending. A nil, nil result means the
// group degraded to zero candidates (DegenerateWindow); it is not an error.
func (e *Engine) Process(sg model.ScoreGroup) ([]model.Candidate, error) {
	if len(sg.Members) == 0 {
		return nil, nil
	}

	sel := e.Config.Selection

	ownerIdx, isoMZ, isoIntensity, err := model.TrimmedIsotopeEnvelope(sg.Members, sel.MZColumn)
	if err != nil {
		return nil, err
	}

	if len(isoMZ) == 0 {
		e.Observer.OnDegenerateWindow(sg, "empty isotope envelope")
		return nil, nil
	}

	abundance := monoisotopicAbundance(sg.Members)

	isoCard := make([]int, len(isoMZ))
	for i := range isoCard {
		isoCard[i] = 1
	}

	precMZ, precWeight := iongroup.Map(ownerIdx, isoMZ, isoIntensity, isoCard, abundance, sel.TopKPrecursors, math.MaxInt32)
	if len(precMZ) == 0 {
		e.Observer.OnDegenerateWindow(sg, "empty isotope ion set after ranking")
		return nil, nil
	}

	fragOwner, fragMZ, fragIntensity, fragCard, err := e.collectFragments(sg)
	if err != nil {
		return nil, err
	}

	if len(fragMZ) == 0 {
		e.Observer.OnDegenerateWindow(sg, "no fragments in range")
		return nil, nil
	}

	fragOutMZ, fragWeight := iongroup.Map(fragOwner, fragMZ, fragIntensity, fragCard, abundance, sel.TopKFragments, sel.MaxCardinality)
	if len(fragOutMZ) == 0 {
		e.Observer.OnDegenerateWindow(sg, "all fragments exceeded max cardinality")
		return nil, nil
	}

	tol := e.Config.Tolerance

	cycleStart, cycleStop := e.Index.RTToCycleRange(sg.RT-tol.RT, sg.RT+tol.RT)
	scanStart, scanStop := e.Index.MobilityToScanRange(sg.Mobility-tol.Mobility, sg.Mobility+tol.Mobility)
	scanStart, scanStop = forceEven(scanStart, scanStop, e.Index.NumScans())

	cycleLimits := [2]int{cycleStart, cycleStop}
	scanLimits := [2]int{scanStart, scanStop}

	loMZ, hiMZ, err := precursorMZRange(sg.Members, sel.MZColumn)
	if err != nil {
		return nil, err
	}

	precMask := window.PrecursorMask(e.Index)
	fragMask := window.FragmentMask(e.Index, loMZ, hiMZ)

	precIons := toIons(precMZ, tol.MZPPM, e.Index)
	fragIons := toIons(fragOutMZ, tol.MZPPM, e.Index)

	precWindow, err := window.Extract(e.Index, cycleLimits, scanLimits, precIons, precMask, tol.MZPPM)
	if err != nil {
		return nil, fmt.Errorf("scoregroup: extract isotope window: %w", err)
	}

	fragWindow, err := window.Extract(e.Index, cycleLimits, scanLimits, fragIons, fragMask, tol.MZPPM)
	if err != nil {
		return nil, fmt.Errorf("scoregroup: extract fragment window: %w", err)
	}

	shape := fragWindow.Shape()
	S, C := int(shape[3]), int(shape[4])

	if S < e.Config.Kernel.Size || C < e.Config.Kernel.Size {
		e.Observer.OnDegenerateWindow(sg, fmt.Sprintf("window (%d,%d) smaller than kernel %d", S, C, e.Config.Kernel.Size))
		return nil, nil
	}

	evenS, evenC := S-S%2, C-C%2
	if evenS < e.Config.Kernel.Size || evenC < e.Config.Kernel.Size {
		e.Observer.OnDegenerateWindow(sg, fmt.Sprintf("cropped window (%d,%d) smaller than kernel %d", evenS, evenC, e.Config.Kernel.Size))
		return nil, nil
	}

	precWindow, err = cropEven(precWindow, evenS, evenC)
	if err != nil {
		return nil, err
	}

	fragWindow, err = cropEven(fragWindow, evenS, evenC)
	if err != nil {
		return nil, err
	}

	kern := kernel.Build(e.Config.Kernel.Size, e.Config.Kernel.SigmaRT, e.Config.Kernel.SigmaMobility)

	sm, err := fourier.New(kern, evenS, evenC)
	if err != nil {
		return nil, fmt.Errorf("scoregroup: build smoother: %w", err)
	}

	precSmoothed, err := sm.SmoothA1(precWindow)
	if err != nil {
		return nil, fmt.Errorf("scoregroup: smooth isotope window: %w", err)
	}

	fragSmoothed, err := sm.SmoothA1(fragWindow)
	if err != nil {
		return nil, fmt.Errorf("scoregroup: smooth fragment window: %w", err)
	}

	scoreMap := fuseScoreMap(precSmoothed, fragSmoothed, precWeight, fragWeight)

	peaks := peak.FindPeaks(scoreMap, sel.CandidateCount, e.Config.Peak.CenterFraction)
	if len(peaks) == 0 {
		e.Observer.OnDegenerateWindow(sg, "no apex above center fraction")
		return nil, nil
	}

	candidates := make([]model.Candidate, 0, len(peaks))

	for rank, p := range peaks {
		b := peak.Boundaries(scoreMap, p,
			e.Config.Peak.FractionMobility, e.Config.Peak.FractionRT,
			e.Config.Peak.MinMobility, e.Config.Peak.MaxMobility,
			e.Config.Peak.MinRT, e.Config.Peak.MaxRT)

		b = clampBoundary(b, evenS, evenC)

		intensity := sumBox(fragWindow, 0, b.ScanStart, b.ScanStop, b.CycleStart, b.CycleStop)
		massError, fractionNonzero := precursorDiagnostics(precWindow, b)

		cycleLen := e.Index.CycleLength()
		representative := sg.Members[0]

		candidates = append(candidates, model.Candidate{
			ElutionGroupIdx:  sg.ElutionGroupIdx,
			PrecursorIdx:     representative.PrecursorIdx,
			Rank:             rank,
			Decoy:            representative.Decoy,
			FlatFragStartIdx: representative.FlatFragStartIdx,
			FlatFragStopIdx:  representative.FlatFragStopIdx,
			ScanStart:        scanLimits[0] + b.ScanStart,
			ScanCenter:       scanLimits[0] + b.ScanCenter,
			ScanStop:         scanLimits[0] + b.ScanStop,
			FrameStart:       (cycleLimits[0] + b.CycleStart) * cycleLen,
			FrameCenter:      (cycleLimits[0] + b.CycleCenter) * cycleLen,
			FrameStop:        (cycleLimits[0] + b.CycleStop) * cycleLen,
			MassError:        massError,
			FractionNonzero:  fractionNonzero,
			Intensity:        intensity,
			RTLibrary:        sg.RT,
			MobilityLibrary:  sg.Mobility,
		})
	}

	e.Observer.OnCandidates(sg, candidates)

	return candidates, nil
}

func (e *Engine) collectFragments(sg model.ScoreGroup) (ownerIdx []int, mz []float64, intensity []float64, cardinality []int, err error) {
	excludeShared := e.Config.Selection.ExcludeSharedFragments

	for mi, p := range sg.Members {
		if int(p.FlatFragStopIdx) > len(e.Fragments) {
			return nil, nil, nil, nil, &model.SchemaError{Reason: fmt.Sprintf(
				"precursor %d flat_frag_stop_idx %d exceeds fragment table length %d", p.PrecursorIdx, p.FlatFragStopIdx, len(e.Fragments))}
		}

		for fi := p.FlatFragStartIdx; fi < p.FlatFragStopIdx; fi++ {
			f := e.Fragments[fi]

			if excludeShared && f.Cardinality > 1 {
				continue
			}

			resolved, rerr := model.ResolveFragmentMZ(f, e.Config.Selection.MZColumn)
			if rerr != nil {
				return nil, nil, nil, nil, rerr
			}

			ownerIdx = append(ownerIdx, mi)
			mz = append(mz, resolved)
			intensity = append(intensity, f.Intensity)
			cardinality = append(cardinality, int(f.Cardinality))
		}
	}

	return ownerIdx, mz, intensity, cardinality, nil
}

func monoisotopicAbundance(members []model.Precursor) []float64 {
	out := make([]float64, len(members))

	for i, m := range members {
		if len(m.IsotopeIntensity) > 0 && m.IsotopeIntensity[0] > 0 {
			out[i] = m.IsotopeIntensity[0]
		} else {
			out[i] = 1
		}
	}

	return out
}

func precursorMZRange(members []model.Precursor, mzColumn string) (lo, hi float64, err error) {
	lo, hi = math.Inf(1), math.Inf(-1)

	for _, m := range members {
		v, rerr := model.ResolvePrecursorMZ(m, mzColumn)
		if rerr != nil {
			return 0, 0, rerr
		}

		if v < lo {
			lo = v
		}

		if v > hi {
			hi = v
		}
	}

	return lo, hi, nil
}

func toIons(mzs []float64, ppm float64, idx *rawindex.RawIndex) []window.Ion {
	ions := make([]window.Ion, len(mzs))

	for i, mz := range mzs {
		start, stop := idx.TofRange(mz, ppm)
		ions[i] = window.Ion{TofStart: start, TofStop: stop, LibraryMZ: mz}
	}

	return ions
}

// forceEven widens [start, stop) by one scan if its length is odd, clipping
// to [0, limit) (mirrors RawIndex.RTToCycleRange's even-sizing rule).
func forceEven(start, stop, limit int) (int, int) {
	if (stop-start)%2 == 0 {
		return start, stop
	}

	if stop < limit {
		return start, stop + 1
	}

	if start > 0 {
		return start - 1, stop
	}

	return start, stop
}

func cropEven(t *tensor.Tensor, evenS, evenC int) (*tensor.Tensor, error) {
	cropped, err := t.Narrow(3, 0, int64(evenS))
	if err != nil {
		return nil, fmt.Errorf("scoregroup: crop scan axis: %w", err)
	}

	cropped, err = cropped.Narrow(4, 0, int64(evenC))
	if err != nil {
		return nil, fmt.Errorf("scoregroup: crop cycle axis: %w", err)
	}

	return cropped, nil
}

// fuseScoreMap builds the final (S, C) score map from the smoothed isotope
// and fragment tensors: each (P, S, C) tensor is collapsed over its ion axis
// by a sum weighted by that ion's iongroup.Map weight, normalized by its own
// mean plus scoreMapEpsilon, and the two normalized maps are multiplied
// elementwise.
func fuseScoreMap(precSmoothed, fragSmoothed *tensor.Tensor, precWeight, fragWeight []float64) [][]float64 {
	precScore := weightedIonMean(precSmoothed, precWeight)
	fragScore := weightedIonMean(fragSmoothed, fragWeight)

	s, c := len(precScore), 0
	if s > 0 {
		c = len(precScore[0])
	}

	out := make([][]float64, s)
	for i := 0; i < s; i++ {
		out[i] = make([]float64, c)

		for j := 0; j < c; j++ {
			out[i][j] = precScore[i][j] * fragScore[i][j]
		}
	}

	return out
}

// weightedIonMean collapses a (P, S, C) smoothed tensor over its ion axis by
// a weighted sum (weight[pi] defaults to 1 when absent) and normalizes the
// resulting (S, C) map by its own mean plus scoreMapEpsilon.
func weightedIonMean(t *tensor.Tensor, weight []float64) [][]float64 {
	shape := t.Shape()
	p, s, c := int(shape[0]), int(shape[1]), int(shape[2])
	strides := t.Strides()
	data := t.RawData()

	out := make([][]float64, s)
	for i := range out {
		out[i] = make([]float64, c)
	}

	if p == 0 {
		for i := range out {
			for j := range out[i] {
				out[i][j] = scoreMapEpsilon
			}
		}

		return out
	}

	for pi := 0; pi < p; pi++ {
		w := 1.0
		if pi < len(weight) {
			w = weight[pi]
		}

		base := int64(pi) * strides[0]

		for i := 0; i < s; i++ {
			row := base + int64(i)*strides[1]

			for j := 0; j < c; j++ {
				out[i][j] += w * float64(data[row+int64(j)*strides[2]])
			}
		}
	}

	var sum float64
	for i := 0; i < s; i++ {
		for j := 0; j < c; j++ {
			sum += out[i][j]
		}
	}

	mean := sum/float64(s*c) + scoreMapEpsilon

	for i := 0; i < s; i++ {
		for j := 0; j < c; j++ {
			out[i][j] /= mean
		}
	}

	return out
}

func clampBoundary(b peak.Boundary, s, c int) peak.Boundary {
	b.ScanStart = clip(b.ScanStart, 0, s)
	b.ScanStop = clip(b.ScanStop, 0, s)
	b.CycleStart = clip(b.CycleStart, 0, c)
	b.CycleStop = clip(b.CycleStop, 0, c)

	return b
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// sumBox sums channel ch of win over the [scanStart,scanStop) x
// [cycleStart,cycleStop) box, across every ion and observation.
func sumBox(win *tensor.Tensor, ch, scanStart, scanStop, cycleStart, cycleStop int) float64 {
	shape := win.Shape()
	nIons, nObs := int(shape[1]), int(shape[2])
	strides := win.Strides()
	data := win.RawData()

	var total float64

	chBase := int64(ch) * strides[0]

	for ii := 0; ii < nIons; ii++ {
		ionBase := chBase + int64(ii)*strides[1]

		for oi := 0; oi < nObs; oi++ {
			obsBase := ionBase + int64(oi)*strides[2]

			for sc := scanStart; sc < scanStop; sc++ {
				row := obsBase + int64(sc)*strides[3]

				for cy := cycleStart; cy < cycleStop; cy++ {
					total += float64(data[row+int64(cy)*strides[4]])
				}
			}
		}
	}

	return total
}

// precursorDiagnostics recovers the intensity-weighted mean ppm mass error
// and the fraction of nonzero intensity cells from the isotope ("precursor
// channel") window within b.
func precursorDiagnostics(win *tensor.Tensor, b peak.Boundary) (massError, fractionNonzero float64) {
	shape := win.Shape()
	nIons, nObs := int(shape[1]), int(shape[2])
	strides := win.Strides()
	data := win.RawData()

	var weightedSum, intensitySum float64
	var nonzero, total int

	intensityBase := int64(0) * strides[0]
	ppmBase := int64(1) * strides[0]

	for ii := 0; ii < nIons; ii++ {
		iOff := int64(ii) * strides[1]

		for oi := 0; oi < nObs; oi++ {
			oOff := iOff + int64(oi)*strides[2]

			for sc := b.ScanStart; sc < b.ScanStop; sc++ {
				row := oOff + int64(sc)*strides[3]

				for cy := b.CycleStart; cy < b.CycleStop; cy++ {
					col := row + int64(cy)*strides[4]

					intensity := float64(data[intensityBase+col])
					ppm := float64(data[ppmBase+col])

					total++

					if intensity > 0 {
						nonzero++
						weightedSum += intensity * ppm
						intensitySum += intensity
					}
				}
			}
		}
	}

	if intensitySum > 0 {
		massError = weightedSum / intensitySum
	}

	if total > 0 {
		fractionNonzero = float64(nonzero) / float64(total)
	}

	return massError, fractionNonzero
}
