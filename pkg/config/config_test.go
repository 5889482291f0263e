package config

import "testing"

func TestFromEnvAppliesDefaults(t *testing.T) {
	c := FromEnv()
	if c.BrokerURL == "" || c.QueueURL == "" || c.RBCID == "" || c.TrainID == "" {
		t.Fatalf("expected defaults to be populated, got %+v", c)
	}
	if c.ThrottleInterval <= 0 || c.HandshakeTimeout <= 0 || c.AutoStopCooldown <= 0 {
		t.Fatalf("expected positive duration defaults, got %+v", c)
	}
	if c.AutoStopThreshold != 0.25 {
		t.Fatalf("expected default auto-stop threshold 0.25, got %v", c.AutoStopThreshold)
	}
}

func TestDeriveRootKeysDeterministic(t *testing.T) {
	c := Config{RootPassphrase: "p", RootSalt: "s"}
	c.applyDefaults()

	a := c.DeriveRootKeys()
	b := c.DeriveRootKeys()
	if a != b {
		t.Fatalf("expected deterministic derivation for the same passphrase/salt")
	}

	other := Config{RootPassphrase: "different", RootSalt: "s"}
	other.applyDefaults()
	if a == other.DeriveRootKeys() {
		t.Fatalf("expected different passphrases to yield different root keys")
	}
}
