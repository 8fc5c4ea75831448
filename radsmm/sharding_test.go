package radsmm

import "testing"

func TestPlanShardingSplitsWhenOverCapacity(t *testing.T) {
	// 300,000,000 cells * 8 bytes ~= 2.24GB, over maxBytesPerFile.
	cells := int64(300_000_000)
	chunksPerFile, numberOfFiles := planSharding(cells, 8)
	if numberOfFiles == 0 {
		t.Fatalf("expected sharding to trigger for %d cells", cells)
	}
	if chunksPerFile*int64(numberOfFiles) < cells {
		t.Fatalf("shards too small: chunksPerFile=%d numberOfFiles=%d cells=%d", chunksPerFile, numberOfFiles, cells)
	}
	if chunksPerFile*8 > maxBytesPerFile {
		t.Fatalf("chunksPerFile %d exceeds maxBytesPerFile at 8 bytes/cell", chunksPerFile)
	}
}

func TestPlanShardingKeepsSingleFileUnderCapacity(t *testing.T) {
	chunksPerFile, numberOfFiles := planSharding(1000, 8)
	if numberOfFiles != 0 {
		t.Fatalf("expected no sharding for a small store, got numberOfFiles=%d", numberOfFiles)
	}
	if chunksPerFile != 1000 {
		t.Fatalf("expected chunksPerFile=1000, got %d", chunksPerFile)
	}
}

func TestCellLocationDivmodAcrossShards(t *testing.T) {
	const chunksPerFile = 100
	cases := []struct {
		offset     int64
		wantShard  int
		wantOffset int64
	}{
		{0, 0, 0},
		{99, 0, 99},
		{100, 1, 0},
		{250, 2, 50},
	}
	for _, c := range cases {
		shard, inShard := cellLocation(c.offset, chunksPerFile)
		if shard != c.wantShard || inShard != c.wantOffset {
			t.Fatalf("cellLocation(%d): got (%d,%d) want (%d,%d)", c.offset, shard, inShard, c.wantShard, c.wantOffset)
		}
	}
}

func TestAxisPermutationEveryOrderingIsAPermutation(t *testing.T) {
	innermosts := map[int]Ordering{}
	for _, o := range []Ordering{OrderingA, OrderingB, OrderingC, OrderingD, OrderingE, OrderingF} {
		perm, err := axisPermutation(o)
		if err != nil {
			t.Fatalf("ordering %c: %v", byte(o), err)
		}
		seen := map[int]bool{}
		for _, axis := range perm {
			if axis < 0 || axis > 6 || seen[axis] {
				t.Fatalf("ordering %c: invalid permutation %v", byte(o), perm)
			}
			seen[axis] = true
		}
		if perm[0] != 0 {
			t.Fatalf("ordering %c: pedigree must be outermost, got %v", byte(o), perm)
		}
		if prior, ok := innermosts[perm[6]]; ok {
			t.Fatalf("ordering %c: innermost axis %d already used by ordering %c, orderings must each give a distinct innermost axis", byte(o), perm[6], byte(prior))
		}
		innermosts[perm[6]] = o
	}
	if innermosts[6] != OrderingA {
		t.Fatalf("expected ordering 'A' to give diseq (axis 6) as innermost, got %c", byte(innermosts[6]))
	}
}

func TestSeekRejectsOutOfRangeIndex(t *testing.T) {
	counts := axisCounts{pedigree: 2, marker: 2, theta: 2, gfreq: 1, pen: 1, qmodel: 1, diseq: 1}
	_, err := seek(OrderingA, counts, CellIndex{Pedigree: 5})
	if err == nil {
		t.Fatal("expected out-of-range error")
	}
}
