package main

import rdata "github.com/goliatone/go-rendererdata"

// catalog is the set of feature types rendererctl knows how to edit.
func catalog() (*rdata.TypeRegistry, error) {
	return rdata.NewTypeRegistry(
		rdata.TypeInfo{
			Name:        "RenderObjects",
			Description: "Draws a filtered set of objects at a chosen point of the frame.",
			Defaults: map[string]any{
				"event":       "AfterRenderingOpaques",
				"queue":       "Opaque",
				"layerMask":   int64(-1),
				"passIndex":   int64(0),
				"overrideMat": "",
			},
		},
		rdata.TypeInfo{
			Name:             "ScreenSpaceAmbientOcclusion",
			Description:      "Darkens creases and contact areas.",
			DisallowMultiple: true,
			Defaults: map[string]any{
				"intensity":      3.0,
				"radius":         0.035,
				"directStrength": 0.25,
				"downsample":     false,
			},
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"intensity":      map[string]any{"type": "number", "minimum": 0, "maximum": 4},
					"radius":         map[string]any{"type": "number", "exclusiveMinimum": 0},
					"directStrength": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"downsample":     map[string]any{"type": "boolean"},
				},
				"required": []any{"intensity", "radius"},
			},
		},
		rdata.TypeInfo{
			Name:             "DecalRendererFeature",
			Description:      "Projects decal materials onto scene geometry.",
			DisallowMultiple: true,
			Defaults: map[string]any{
				"technique":       "Automatic",
				"maxDrawDistance": 1000.0,
				"surfaceData":     "AlbedoNormalMAOS",
				"normalBlend":     "Low",
			},
		},
		rdata.TypeInfo{
			Name:        "FullScreenPassRendererFeature",
			Description: "Renders a full screen material pass.",
			Defaults: map[string]any{
				"event":      "AfterRenderingPostProcessing",
				"passMat":    "",
				"passIndex":  int64(0),
				"fetchColor": true,
			},
		},
		rdata.TypeInfo{
			Name:             "ScreenSpaceShadows",
			Category:         rdata.CategoryExperimental,
			Description:      "Resolves main light shadows in screen space.",
			DisallowMultiple: true,
		},
	)
}
