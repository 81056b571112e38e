package witness

import (
	"testing"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

func TestPromotionLattice(t *testing.T) {
	s := NewStructural(StructuralEvidence{BlockCount: 4, MetadataSane: true})
	if s.Tier() != Structural {
		t.Fatal("expected Structural tier")
	}

	hm := PromoteToHashMatch(s, HashMatchEvidence{Algorithm: oracle.SHA256, BlocksChecked: 4})
	if hm.Tier() != HashMatch {
		t.Fatal("expected HashMatch tier")
	}
	if hm.Structural() != s.Structural() {
		t.Fatal("promotion must retain prior tier's evidence")
	}

	at := PromoteToAttested(hm, AttestedEvidence{Timestamp: time.Now(), InvariantSatisfied: true})
	if at.Tier() != Attested {
		t.Fatal("expected Attested tier")
	}
	if at.HashMatchData() != hm.HashMatchData() {
		t.Fatal("promotion must retain prior tier's evidence")
	}
}

func TestWeakeningProjection(t *testing.T) {
	s := NewStructural(StructuralEvidence{BlockCount: 2, MetadataSane: true})
	hm := PromoteToHashMatch(s, HashMatchEvidence{Algorithm: oracle.SHA256, BlocksChecked: 2})
	at := PromoteToAttested(hm, AttestedEvidence{Timestamp: time.Now(), InvariantSatisfied: true})

	weakened := WeakenToHashMatch(at)
	if weakened.Tier() != HashMatch {
		t.Fatal("expected HashMatch after weakening Attested")
	}
	if weakened.HashMatchData() != hm.HashMatchData() {
		t.Fatal("weakened witness must equal the pre-promotion witness's evidence")
	}

	weakenedAgain := WeakenToStructural(weakened)
	if weakenedAgain.Tier() != Structural {
		t.Fatal("expected Structural after weakening HashMatch")
	}
	if weakenedAgain.Structural() != s.Structural() {
		t.Fatal("weakened witness must equal the original structural evidence")
	}
}

func TestPromotionPanicsOnWrongTier(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when promoting from the wrong tier")
		}
	}()
	s := NewStructural(StructuralEvidence{})
	PromoteToAttested(&Witness{tier: Structural}, AttestedEvidence{})
	_ = s
}

func TestTierOrdering(t *testing.T) {
	if !Attested.AtLeast(HashMatch) || !Attested.AtLeast(Structural) {
		t.Fatal("Attested must satisfy all weaker thresholds")
	}
	if Structural.AtLeast(HashMatch) {
		t.Fatal("Structural must not satisfy HashMatch threshold")
	}
}
