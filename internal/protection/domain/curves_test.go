package protection

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestLookupCurve_Known(t *testing.T) {
	curve, err := LookupCurve("IEC_NI")
	if err != nil {
		t.Fatalf("lookup IEC_NI: %v", err)
	}
	if curve.Family != CurveFamilyIEC {
		t.Fatalf("expected IEC family, got %s", curve.Family)
	}
	if curve.IEC.K != 0.14 || curve.IEC.Alpha != 0.02 {
		t.Fatalf("unexpected coefficients: %+v", curve.IEC)
	}
}

func TestLookupCurve_UnknownListsAllIdentifiers(t *testing.T) {
	_, err := LookupCurve("IEC_BOGUS")
	if err == nil {
		t.Fatal("expected error for unknown curve")
	}
	var unknown *UnknownCurveError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownCurveError, got %T", err)
	}
	if unknown.ID != "IEC_BOGUS" {
		t.Fatalf("unexpected id in error: %s", unknown.ID)
	}
	for _, id := range CurveIDs() {
		if !strings.Contains(err.Error(), id) {
			t.Fatalf("error message missing identifier %s: %s", id, err.Error())
		}
	}
}

func TestCurveRegistry_EveryCurveHasUnambiguousFamily(t *testing.T) {
	for _, curve := range ListCurves() {
		switch curve.Family {
		case CurveFamilyIEC:
			if curve.IEC.K <= 0 || curve.IEC.Alpha <= 0 {
				t.Fatalf("%s: invalid IEC coefficients %+v", curve.ID, curve.IEC)
			}
		case CurveFamilyIEEE:
			if curve.IEEE.A <= 0 || curve.IEEE.P < 0 {
				t.Fatalf("%s: invalid IEEE coefficients %+v", curve.ID, curve.IEEE)
			}
		default:
			t.Fatalf("%s: unclassified family %q", curve.ID, curve.Family)
		}
	}
}

func TestListCurves_SortedByStandardThenID(t *testing.T) {
	curves := ListCurves()
	if len(curves) != len(CurveIDs()) {
		t.Fatalf("list size %d != registry size %d", len(curves), len(CurveIDs()))
	}
	for i := 1; i < len(curves); i++ {
		prev, cur := curves[i-1], curves[i]
		if prev.Standard > cur.Standard {
			t.Fatalf("standards out of order: %s before %s", prev.Standard, cur.Standard)
		}
		if prev.Standard == cur.Standard && prev.ID > cur.ID {
			t.Fatalf("ids out of order within %s: %s before %s", cur.Standard, prev.ID, cur.ID)
		}
	}
}

func TestOperateTime_IECNormalInverseReference(t *testing.T) {
	curve, err := LookupCurve("IEC_NI")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	// Pickup 150A, TMS 0.3: published reference points for the IEC NI curve.
	cases := []struct {
		currentA float64
		wantSec  float64
	}{
		{200, 7.28},
		{400, 2.12},
	}
	for _, tc := range cases {
		got := curve.OperateTime(tc.currentA/150.0, 0.3)
		if math.Abs(got-tc.wantSec) > 0.01 {
			t.Fatalf("at %gA: got %.4fs, want %.2fs", tc.currentA, got, tc.wantSec)
		}
	}
}

func TestOperateTime_StrictlyDecreasing(t *testing.T) {
	for _, curve := range ListCurves() {
		if curve.Family == CurveFamilyIEEE && curve.IEEE.P == 0 {
			// Definite-time characteristic, flat above pickup.
			continue
		}
		prev := math.Inf(1)
		for multiple := 1.1; multiple < 40; multiple *= 1.5 {
			got := curve.OperateTime(multiple, 0.5)
			if got <= 0 {
				t.Fatalf("%s: non-positive time %.6f at M=%.2f", curve.ID, got, multiple)
			}
			if got >= prev {
				t.Fatalf("%s: time not strictly decreasing at M=%.2f (%.6f >= %.6f)", curve.ID, multiple, got, prev)
			}
			prev = got
		}
	}
}
