package shared

import (
	"fmt"
	"strings"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// OperatorConfig identifies the Hedera account that pays for and signs
// transactions submitted by the hts minter.
type OperatorConfig struct {
	AccountID  string `yaml:"account_id"`
	PrivateKey string `yaml:"private_key"`
	Network    string `yaml:"network"`
}

// OperatorConfigFromEnv reads operator credentials from the environment.
// Network-scoped names (TESTNET_HEDERA_ACCOUNT_ID, MAINNET_...) win over the
// generic ones so a single .env file can carry both networks.
func OperatorConfigFromEnv() (OperatorConfig, error) {
	loadDotEnvIfPresent()

	config := operatorConfigFromEnv()
	if config.AccountID == "" {
		return OperatorConfig{}, &ConfigurationError{Setting: "HEDERA_ACCOUNT_ID", Message: "is required"}
	}
	if config.PrivateKey == "" {
		return OperatorConfig{}, &ConfigurationError{Setting: "HEDERA_PRIVATE_KEY", Message: "is required"}
	}

	return config, nil
}

func operatorConfigFromEnv() OperatorConfig {
	network := firstNonEmptyEnv("HEDERA_NETWORK", "NETWORK")
	if network == "" {
		network = NetworkTestnet
	}

	config := OperatorConfig{
		Network:    network,
		AccountID:  firstNonEmptyEnv("HEDERA_ACCOUNT_ID", "HEDERA_OPERATOR_ID", "ACCOUNT_ID", "OPERATOR_ID"),
		PrivateKey: firstNonEmptyEnv("HEDERA_PRIVATE_KEY", "HEDERA_OPERATOR_KEY", "PRIVATE_KEY", "OPERATOR_KEY"),
	}

	scope := strings.ToUpper(strings.TrimSpace(network))
	if scopedAccount := firstNonEmptyEnv(
		scope+"_HEDERA_ACCOUNT_ID",
		scope+"_HEDERA_OPERATOR_ID",
		scope+"_OPERATOR_ID",
	); scopedAccount != "" {
		config.AccountID = scopedAccount
	}
	if scopedKey := firstNonEmptyEnv(
		scope+"_HEDERA_PRIVATE_KEY",
		scope+"_HEDERA_OPERATOR_KEY",
		scope+"_OPERATOR_KEY",
	); scopedKey != "" {
		config.PrivateKey = scopedKey
	}

	return config
}

// ParsePrivateKey accepts ED25519, ECDSA or DER encoded Hedera keys.
func ParsePrivateKey(raw string) (hedera.PrivateKey, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return hedera.PrivateKey{}, fmt.Errorf("private key cannot be empty")
	}

	ed25519Key, edErr := hedera.PrivateKeyFromStringEd25519(candidate)
	if edErr == nil {
		return ed25519Key, nil
	}
	ecdsaKey, ecdsaErr := hedera.PrivateKeyFromStringECDSA(candidate)
	if ecdsaErr == nil {
		return ecdsaKey, nil
	}
	genericKey, genericErr := hedera.PrivateKeyFromString(candidate)
	if genericErr == nil {
		return genericKey, nil
	}

	return hedera.PrivateKey{}, fmt.Errorf(
		"failed to parse private key as ED25519 (%v), ECDSA (%v), or generic (%v)",
		edErr,
		ecdsaErr,
		genericErr,
	)
}
