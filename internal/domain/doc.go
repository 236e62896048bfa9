// Package domain models the Bari neighborhood-safety datasets and the
// aggregation rules that turn them into the map artifact.
//
// # Data Sources
//
// Three CSV exports feed the pipeline:
//
//   - A safety-perception survey (Google Forms export). Each row is one
//     respondent. Headers are the verbatim question texts, so columns are
//     located by substring vocabulary rather than fixed names: the
//     neighborhood question contains "quartiere", each perceived-problem
//     question appears twice as "Problemiquartiere: <problema> [Scala_1]"
//     (yes/no) and "[Scala_2]" (intensity), and the unsafe-places grid
//     columns contain "luoghiinsicurezza" with the literal "Selezionato"
//     marking a selection.
//   - The 2023 road-incident extract from the municipal open-data portal,
//     one geolocated point per row ("latitudine"/"longitudine" columns).
//   - The 2017 incident file, which carries street names ("denominazione
//     strada") but no usable coordinates.
//
// # Response Scales
//
// Survey answers are Italian categorical strings mapped into [0,1]:
//
//	yes/no:     Sì, Si → 1.0; No → 0.0
//	intensity:  Molto, Moltissimo → 1.0; Abbastanza → 0.7; Poco → 0.3; Per nulla → 0.0
//
// Anything else (blank, "Non so", free text) is excluded from the mean
// rather than coerced. A group with no mappable answers scores 0.0.
//
// # Risk Score
//
// Per neighborhood, risk is a weighted sum of the per-problem yes rates:
//
//	spaccio 0.25, criminali 0.25, ragazzini 0.15, illuminazione 0.15,
//	degrado_marciapiedi 0.10, barboni 0.10
//
// Weights sum to 1.0 so the score stays in [0,1]. A problem whose survey
// column is missing contributes 0.
//
// # Incident Grid
//
// Incident points inside the Bari bounding box are bucketed into a fixed
// lat/lon grid of 0.003° by 0.004° cells (roughly 330m squares at this
// latitude). Cell keys are "<lat>,<lon>" of the cell origin, floor-quantized
// and rounded to 4 decimals, which is the format the front-end heatmap
// parses back into coordinates.
package domain
