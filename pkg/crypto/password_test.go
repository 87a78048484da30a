package crypto

import (
	"strings"
	"testing"
)

func TestArgon2_Hash(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "success", password: "testPassword123"},
		{name: "empty password", password: ""},
		{name: "long password", password: strings.Repeat("a", 128)},
		{name: "unicode", password: "пароль🔐"},
		{name: "special chars", password: "p@ssw0rd!#$%"},
		{name: "null byte", password: "pass\x00word"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			a := NewArgon2()

			hash, err := a.Hash(test.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}

			// PHC format validation
			if !strings.HasPrefix(hash, "$argon2id$") {
				t.Error("Hash() should start with $argon2id$")
			}
			if !strings.Contains(hash, "$v=19$") {
				t.Error("Hash() should contain version 19")
			}
			if len(strings.Split(hash, "$")) != 6 {
				t.Error("Hash() should have 6 parts")
			}
		})
	}
}

func TestArgon2_Hash_UniqueSalts(t *testing.T) {
	a := NewArgon2()

	hash1, err := a.Hash("samePassword")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	hash2, err := a.Hash("samePassword")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("same password produced identical hashes; salts not random")
	}
}

func TestArgon2_Verify(t *testing.T) {
	a := NewArgon2()
	hash, err := a.Hash("correctPassword")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
		wantErr  bool
	}{
		{name: "correct password", password: "correctPassword", hash: hash, want: true},
		{name: "wrong password", password: "wrongPassword", hash: hash, want: false},
		{name: "case sensitive", password: "CORRECTPASSWORD", hash: hash, want: false},
		{name: "malformed hash", password: "correctPassword", hash: "not-a-hash", wantErr: true},
		{name: "wrong algorithm", password: "x", hash: "$bcrypt$v=19$m=1,t=1,p=1$AA$AA", wantErr: true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			got, err := a.Verify(test.password, test.hash)
			if (err != nil) != test.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("Verify() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestArgon2_Verify_ParamsFromHash(t *testing.T) {
	// Verification reads cost parameters out of the stored encoding, so
	// hashes survive a change of the configured defaults.
	old := &Argon2{Memory: 32 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hash, err := old.Hash("migrated")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	ok, err := NewArgon2().Verify("migrated", hash)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ok {
		t.Error("hash with older cost parameters rejected")
	}
}

func TestArgon2_DummyHash(t *testing.T) {
	a := NewArgon2()
	dummy := a.DummyHash()

	// Decodes like a real hash so Verify spends its usual time budget
	ok, err := a.Verify("anyPassword", dummy)
	if err != nil {
		t.Fatalf("Verify(dummy) error = %v", err)
	}
	if ok {
		t.Error("dummy hash matched a password")
	}
}
