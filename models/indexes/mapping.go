package indexes

var MAPPING_KEYWORD = map[string]interface{}{"type": "keyword"}
var MAPPING_TEXT = map[string]interface{}{"type": "text", "fields": map[string]interface{}{
	"keyword": map[string]interface{}{
		"type":         "keyword",
		"ignore_above": 256,
	},
}}
var MAPPING_LONG = map[string]interface{}{"type": "long"}
var MAPPING_INTEGER = map[string]interface{}{"type": "integer"}
var MAPPING_FLOAT64 = map[string]interface{}{"type": "double"}
var MAPPING_DATE = map[string]interface{}{"type": "date"}
var MAPPING_BOOL = map[string]interface{}{"type": "boolean"}

func nested(properties map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "nested", "properties": properties}
}

func object(properties map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"properties": properties}
}

// VARIANT_INDEX_MAPPING keeps study entries, population frequencies,
// scores and stats nested so that a single element has to satisfy all
// predicates of one existential filter. The raw annotation is stored
// but not indexed; queries run on annotationIndex.
var VARIANT_INDEX_MAPPING = map[string]interface{}{
	"dynamic_templates": []interface{}{
		map[string]interface{}{
			"genotype_buckets": map[string]interface{}{
				"path_match": "studies.gt.*",
				"mapping":    MAPPING_INTEGER,
			},
		},
		map[string]interface{}{
			"genotype_counts": map[string]interface{}{
				"path_match": "stats.gtc.*",
				"mapping":    MAPPING_INTEGER,
			},
		},
		map[string]interface{}{
			"file_attributes": map[string]interface{}{
				"path_match": "studies.files.attrs.*",
				"mapping":    MAPPING_KEYWORD,
			},
		},
	},
	"properties": map[string]interface{}{
		"id":         MAPPING_KEYWORD,
		"names":      MAPPING_KEYWORD,
		"chromosome": MAPPING_KEYWORD,
		"start":      MAPPING_LONG,
		"end":        MAPPING_LONG,
		"reference":  MAPPING_KEYWORD,
		"alternate":  MAPPING_KEYWORD,
		"type":       MAPPING_KEYWORD,
		"studies": nested(map[string]interface{}{
			"sid": MAPPING_INTEGER,
			"files": object(map[string]interface{}{
				"fid":    MAPPING_INTEGER,
				"filter": MAPPING_KEYWORD,
				"qual":   MAPPING_FLOAT64,
			}),
			"gt": map[string]interface{}{"type": "object", "dynamic": true},
		}),
		"annotation": map[string]interface{}{"type": "object", "enabled": false},
		"annotationIndex": object(map[string]interface{}{
			"annotated":  MAPPING_BOOL,
			"xrefs":      MAPPING_KEYWORD,
			"genes":      MAPPING_KEYWORD,
			"geneSo":     MAPPING_KEYWORD,
			"so":         MAPPING_INTEGER,
			"biotypes":   MAPPING_KEYWORD,
			"flags":      MAPPING_KEYWORD,
			"traitIds":   MAPPING_KEYWORD,
			"traitNames": MAPPING_TEXT,
			"hpo":        MAPPING_KEYWORD,
			"drugs":      MAPPING_KEYWORD,
			"keywords":   MAPPING_KEYWORD,
			"popFreqs": nested(map[string]interface{}{
				"study":         MAPPING_KEYWORD,
				"population":    MAPPING_KEYWORD,
				"refAlleleFreq": MAPPING_FLOAT64,
				"altAlleleFreq": MAPPING_FLOAT64,
			}),
			"scores": nested(map[string]interface{}{
				"source":      MAPPING_KEYWORD,
				"score":       MAPPING_FLOAT64,
				"description": MAPPING_KEYWORD,
			}),
		}),
		"annotationSnapshots": map[string]interface{}{"type": "object", "enabled": false},
		"stats": nested(map[string]interface{}{
			"sid":              MAPPING_INTEGER,
			"cid":              MAPPING_INTEGER,
			"maf":              MAPPING_FLOAT64,
			"mgf":              MAPPING_FLOAT64,
			"refAlleleFreq":    MAPPING_FLOAT64,
			"altAlleleFreq":    MAPPING_FLOAT64,
			"missingAlleles":   MAPPING_INTEGER,
			"missingGenotypes": MAPPING_INTEGER,
			"gtc":              map[string]interface{}{"type": "object", "dynamic": true},
		}),
		"customAnnotations": nested(map[string]interface{}{
			"name":   MAPPING_KEYWORD,
			"key":    MAPPING_KEYWORD,
			"value":  MAPPING_KEYWORD,
			"number": MAPPING_FLOAT64,
		}),
		"createdTime": MAPPING_DATE,
	},
}
