package customers

import "testing"

func TestCountTalliesEveryOccurrence(t *testing.T) {
	counts := Count([]string{"Acme", "Globex", "Acme", "Acme"})
	if counts["Acme"] != 3 {
		t.Fatalf("expected 3 occurrences of Acme got %d", counts["Acme"])
	}
	if counts["Globex"] != 1 {
		t.Fatalf("expected 1 occurrence of Globex got %d", counts["Globex"])
	}
	if counts["Initech"] != 0 {
		t.Fatalf("expected unknown key to count 0")
	}
}

func TestClassifierIsSetGlobal(t *testing.T) {
	classifier := NewClassifier([]string{"Acme", "Acme", "Acme", "Globex"})
	if !classifier.IsRepeat("Acme") {
		t.Fatalf("expected Acme to be repeat")
	}
	if classifier.IsRepeat("Globex") {
		t.Fatalf("expected Globex to be new")
	}
	if classifier.IsRepeat("Initech") {
		t.Fatalf("expected unseen client to be new")
	}
}

func TestClassifierThreshold(t *testing.T) {
	classifier := NewClassifier([]string{"Acme", "Acme"})
	if !classifier.IsRepeat("Acme") {
		t.Fatalf("expected two occurrences to reach the repeat threshold")
	}
	if len(classifier.Counts()) != 1 {
		t.Fatalf("expected one counted identity")
	}
}
