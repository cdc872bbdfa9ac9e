// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// Env is the template execution environment for task files
type Env struct {
	Environ map[string]string `json:"environ" yaml:"environ"`
	Context []string          `json:"context" yaml:"context"`
	Data    map[string]any    `json:"data" yaml:"data"`

	envJSON json.RawMessage
	mu      sync.Mutex
}

// NewEnv creates a template environment from KEY=VALUE environ entries,
// the call tree and freeform data
func NewEnv(environ []string, callTree []string, data map[string]any) *Env {
	env := make(map[string]string, len(environ))
	for _, entry := range environ {
		k, v, ok := strings.Cut(entry, "=")
		if ok {
			env[k] = v
		}
	}

	if data == nil {
		data = make(map[string]any)
	}

	return &Env{
		Environ: env,
		Context: callTree,
		Data:    data,
	}
}

func (e *Env) lookup(params ...any) (any, error) {
	return jsonLookup(e, &e.envJSON, &e.mu, params...)
}

// Lookup resolves a gjson path over the environment for use from
// templates, as in lookup("data.target", "default"), resolution
// failures yield the empty string
func (e *Env) Lookup(params ...any) any {
	v, err := e.lookup(params...)
	if err != nil {
		return ""
	}

	return v
}

// jsonLookup resolves a gjson path over the JSON form of doc, marshaling
// it once into cache. An optional second parameter is the value returned
// for paths that do not resolve, the empty string otherwise
func jsonLookup(doc any, cache *json.RawMessage, mu *sync.Mutex, params ...any) (any, error) {
	if len(params) == 0 || len(params) > 2 {
		return nil, fmt.Errorf("lookup requires 1 or 2 arguments")
	}

	key, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("lookup requires a string argument")
	}

	var defaultValue any = ""
	if len(params) == 2 {
		defaultValue = params[1]
	}

	mu.Lock()
	defer mu.Unlock()

	if *cache == nil {
		j, err := json.Marshal(doc)
		if err != nil {
			return "", err
		}
		*cache = j
	}

	res := gjson.GetBytes(*cache, key)
	if !res.Exists() {
		return defaultValue, nil
	}

	if res.Type == gjson.Number {
		if strings.Contains(res.Raw, ".") {
			return res.Float(), nil
		}

		return res.Int(), nil
	}

	return res.Value(), nil
}
