package game

import (
	"testing"
)

func TestFloats(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{"Single float", 1},
		{"One block", 8},
		{"Spans blocks", 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Floats("server", "client", 1, tt.count)
			if len(got) != tt.count {
				t.Fatalf("Floats() returned %d values, want %d", len(got), tt.count)
			}
			for _, f := range got {
				if f < 0 || f >= 1 {
					t.Errorf("Floats() value %v out of [0, 1)", f)
				}
			}
		})
	}
}

func TestFloats_Deterministic(t *testing.T) {
	a := Floats("deterministic_test_seed", "deterministic_client_seed", 42, 12)
	b := Floats("deterministic_test_seed", "deterministic_client_seed", 42, 12)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Floats() is not deterministic at %d: %v vs %v", i, a[i], b[i])
		}
	}

	// The prefix of a longer run matches a shorter run.
	short := Floats("deterministic_test_seed", "deterministic_client_seed", 42, 3)
	for i := range short {
		if short[i] != a[i] {
			t.Errorf("prefix mismatch at %d", i)
		}
	}
}

func TestFloats_DifferentInputs(t *testing.T) {
	r1 := Floats("test_seed", "test_client", 1, 1)[0]
	r2 := Floats("test_seed", "test_client", 2, 1)[0]
	r3 := Floats("test_seed", "other_client", 1, 1)[0]

	if r1 == r2 && r2 == r3 {
		t.Error("Floats() produces same result for different inputs (unlikely)")
	}
}

func TestGenerateSeed(t *testing.T) {
	seed1 := GenerateSeed()
	seed2 := GenerateSeed()

	if seed1 == seed2 {
		t.Error("GenerateSeed() produced duplicate seeds")
	}

	if len(seed1) != 64 { // 32 bytes = 64 hex characters
		t.Errorf("GenerateSeed() length = %v, want 64", len(seed1))
	}
}

func TestHashCommitment(t *testing.T) {
	seed := "test_seed_12345"

	hash1 := HashCommitment(seed)
	hash2 := HashCommitment(seed)

	if hash1 != hash2 {
		t.Error("HashCommitment() is not deterministic")
	}

	if len(hash1) != 64 { // SHA256 = 64 hex characters
		t.Errorf("HashCommitment() length = %v, want 64", len(hash1))
	}
}

func TestVerifyMines(t *testing.T) {
	serverSeed := "verification_test_seed"
	clientSeed := "verification_client_seed"
	nonce := 100
	actual := MineLayout(serverSeed, clientSeed, nonce, 25, 5)

	tampered := append([]int(nil), actual...)
	tampered[0] = (tampered[0] + 1) % 25
	for contains(actual, tampered[0]) {
		tampered[0] = (tampered[0] + 1) % 25
	}

	reversed := make([]int, len(actual))
	for i, v := range actual {
		reversed[len(actual)-1-i] = v
	}

	tests := []struct {
		name       string
		serverSeed string
		claimed    []int
		want       bool
	}{
		{"Valid verification", serverSeed, actual, true},
		{"Order does not matter", serverSeed, reversed, true},
		{"Tampered layout", serverSeed, tampered, false},
		{"Wrong server seed", "wrong_seed", actual, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifyMines(tt.serverSeed, clientSeed, nonce, 25, tt.claimed)
			if got != tt.want {
				t.Errorf("VerifyMines() = %v, want %v", got, tt.want)
			}
		})
	}
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func BenchmarkFloats(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Floats("benchmark_server_seed", "benchmark_client_seed", i, 24)
	}
}

func BenchmarkGenerateSeed(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateSeed()
	}
}

func BenchmarkHashCommitment(b *testing.B) {
	seed := "benchmark_seed_12345"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashCommitment(seed)
	}
}
