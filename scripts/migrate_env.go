package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// flatten turns nested YAML sections into the flat upper-case keys the
// server reads from .env, e.g. federation.min_clients_per_round becomes
// FEDERATION_MIN_CLIENTS_PER_ROUND.
func flatten(prefix string, section map[string]interface{}) map[string]string {
	out := make(map[string]string)
	for k, v := range section {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}

		switch val := v.(type) {
		case map[string]interface{}:
			for nk, nv := range flatten(key, val) {
				out[nk] = nv
			}
		case string:
			out[key] = fmt.Sprintf("%q", val)
		default:
			out[key] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

func main() {
	src := "config/config.yaml"
	dst := ".env"
	if len(os.Args) > 1 {
		src = os.Args[1]
	}
	if len(os.Args) > 2 {
		dst = os.Args[2]
	}

	yamlData, err := os.ReadFile(src)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", src, err)
		os.Exit(1)
	}

	var cfg map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &cfg); err != nil {
		fmt.Printf("Error parsing %s: %v\n", src, err)
		os.Exit(1)
	}

	envVars := flatten("", cfg)
	keys := make([]string, 0, len(envVars))
	for k := range envVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var envContent strings.Builder
	for _, k := range keys {
		envContent.WriteString(fmt.Sprintf("%s=%s\n", k, envVars[k]))
	}

	if err := os.WriteFile(dst, []byte(envContent.String()), 0o644); err != nil {
		fmt.Printf("Error writing %s: %v\n", dst, err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s to %s\n", src, dst)
}
