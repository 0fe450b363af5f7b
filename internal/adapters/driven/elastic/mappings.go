package elastic

import "github.com/gridops/condor-spider/internal/normalise"

// Mappings returns the index mappings for harvested documents: typed
// properties for every known attr plus dynamic templates covering the
// auto-typed attr families and unknown strings.
func Mappings() map[string]any {
	props := make(map[string]any)
	for _, name := range normalise.TextAttrNames() {
		props[name] = map[string]any{"type": "text"}
	}
	for _, name := range normalise.IndexedKeywordAttrNames() {
		props[name] = map[string]any{"type": "keyword"}
	}
	for _, name := range normalise.NoindexKeywordAttrNames() {
		props[name] = map[string]any{"type": "keyword", "index": "false"}
	}
	for _, name := range normalise.FloatAttrNames() {
		props[name] = map[string]any{"type": "double"}
	}
	for _, name := range normalise.IntAttrNames() {
		props[name] = map[string]any{"type": "long"}
	}
	for _, name := range normalise.DateAttrNames() {
		props[name] = map[string]any{"type": "date", "format": "epoch_second"}
	}
	for _, name := range normalise.BoolAttrNames() {
		props[name] = map[string]any{"type": "boolean"}
	}
	props["metadata"] = map[string]any{
		"properties": map[string]any{
			"spider_runtime":  map[string]any{"type": "date", "format": "epoch_second"},
			"spider_hostname": map[string]any{"type": "keyword"},
			"spider_username": map[string]any{"type": "keyword"},
			"spider_source":   map[string]any{"type": "keyword"},
		},
	}

	dynamicTemplates := []map[string]any{
		{
			// Attrs ending in _EXPR hold raw expressions that could
			// not be evaluated during conversion.
			"raw_expressions": map[string]any{
				"match": "*_EXPR",
				"mapping": map[string]any{
					"type": "keyword", "index": "false", "ignore_above": 256,
				},
			},
		},
		{
			"date_attrs": map[string]any{
				"match": "*Date",
				"mapping": map[string]any{
					"type": "date", "format": "epoch_second",
				},
			},
		},
		{
			"provisioned_attrs": map[string]any{
				"match":   "*Provisioned",
				"mapping": map[string]any{"type": "long"},
			},
		},
		{
			"resource_request_attrs": map[string]any{
				"match_pattern": "regex",
				"match":         "^Request[A-Z].*$",
				"mapping":       map[string]any{"type": "long"},
			},
		},
		{
			"target_boolean_attrs": map[string]any{
				"match_pattern": "regex",
				"match":         "^(Want|Has|Is)[A-Z_].*$",
				"mapping":       map[string]any{"type": "boolean"},
			},
		},
		{
			"strings_as_keywords": map[string]any{
				"match_mapping_type": "string",
				"mapping": map[string]any{
					"type": "keyword", "norms": "false", "ignore_above": 256,
				},
			},
		},
	}

	return map[string]any{
		"dynamic_templates": dynamicTemplates,
		"properties":        props,
		"date_detection":    false,
		"numeric_detection": false,
	}
}

// Settings returns the index settings applied at creation time.
func Settings() map[string]any {
	return map[string]any{
		"analysis": map[string]any{
			"analyzer": map[string]any{
				"analyzer_keyword": map[string]any{
					"tokenizer": "keyword",
					"filter":    "lowercase",
				},
			},
		},
		"mapping.total_fields.limit": 2000,
	}
}
