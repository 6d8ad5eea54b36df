// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cluster

import "testing"

func twoBlobs() [][]float64 {
	var rows [][]float64
	for i := 0; i < 20; i++ {
		rows = append(rows, []float64{float64(i % 5) * 0.1, float64(i/5) * 0.1})
	}
	for i := 0; i < 20; i++ {
		rows = append(rows, []float64{100 + float64(i%5)*0.1, 100 + float64(i/5)*0.1})
	}
	return rows
}

func TestRunSeparatesBlobs(t *testing.T) {
	rows := twoBlobs()
	res, err := Run(rows, Params{MinClusterSize: 5, MinSamples: 3})
	if err != nil {
		t.Fatal(err)
	}
	labelA := res.Label[0]
	labelB := res.Label[20]
	if labelA == -1 || labelB == -1 {
		t.Fatalf("expected both blobs to be clustered, got labels %d, %d", labelA, labelB)
	}
	if labelA == labelB {
		t.Fatalf("expected distinct labels for the two blobs, got %d for both", labelA)
	}
	for i := 0; i < 20; i++ {
		if res.Label[i] != labelA {
			t.Errorf("point %d: got label %d, want %d (first blob)", i, res.Label[i], labelA)
		}
	}
	for i := 20; i < 40; i++ {
		if res.Label[i] != labelB {
			t.Errorf("point %d: got label %d, want %d (second blob)", i, res.Label[i], labelB)
		}
	}
}

func TestRunOutputRanges(t *testing.T) {
	rows := twoBlobs()
	res, err := Run(rows, Params{MinClusterSize: 5, MinSamples: 3})
	if err != nil {
		t.Fatal(err)
	}
	for i := range rows {
		if res.Probability[i] < 0 || res.Probability[i] > 1 {
			t.Errorf("point %d probability out of range: %v", i, res.Probability[i])
		}
		if res.OutlierScore[i] < 0 || res.OutlierScore[i] > 1 {
			t.Errorf("point %d outlier score out of range: %v", i, res.OutlierScore[i])
		}
		if res.Label[i] < -1 {
			t.Errorf("point %d has invalid label: %d", i, res.Label[i])
		}
	}
}

func TestRunSmallPopulationIsAllNoise(t *testing.T) {
	rows := [][]float64{{0, 0}, {1, 1}}
	res, err := Run(rows, Params{MinClusterSize: 10, MinSamples: 1})
	if err != nil {
		t.Fatal(err)
	}
	for i, l := range res.Label {
		if l != -1 {
			t.Errorf("point %d: got label %d, want -1 (population smaller than min_cluster_size)", i, l)
		}
		if res.OutlierScore[i] != 1 {
			t.Errorf("point %d: got outlier score %v, want 1", i, res.OutlierScore[i])
		}
	}
}

func TestValidateRejectsBadParams(t *testing.T) {
	bad := []Params{{MinClusterSize: 0, MinSamples: 1}, {MinClusterSize: 1, MinSamples: 0}}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", p)
		}
	}
}

func TestRunEmpty(t *testing.T) {
	res, err := Run(nil, Params{MinClusterSize: 1, MinSamples: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Label) != 0 {
		t.Fatalf("got %d labels, want 0", len(res.Label))
	}
}
