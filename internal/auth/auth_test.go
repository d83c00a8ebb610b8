package auth

import "testing"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("testpass123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "testpass123" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "testpass123") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrongpass") {
		t.Error("wrong password accepted")
	}
}

func TestGenerateCredential(t *testing.T) {
	raw1, hash1, err := GenerateCredential()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	raw2, _, err := GenerateCredential()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(raw1) != 64 {
		t.Errorf("credential length = %d, want 64", len(raw1))
	}
	if raw1 == raw2 {
		t.Error("credentials not unique")
	}
	if raw1 == hash1 {
		t.Error("hash equals raw credential")
	}
	if HashCredential(raw1) != hash1 {
		t.Error("HashCredential does not match generated hash")
	}
}
