// Package prediction estimates when vehicles still approaching a reference
// point will reach it, using journeys of the same line that already passed it.
//
// The engine works in four steps, all pure functions of their inputs:
//
//   - DetectCrossing finds, per journey, the first sample inside the radius
//     around the reference point.
//   - SelectTemplates ranks journeys that crossed by "now", most recent first,
//     and SelectTargets keeps the fresh journeys that have not crossed yet.
//   - Align matches the latest position of a target to the nearest point of a
//     template trajectory.
//   - Combine takes the median of the per-template extrapolations.
//
// Engine wires the steps together for a single evaluation time (Predict) or
// for a sweep of evaluation times (PredictSeries). It holds no state besides
// its Config and is safe for concurrent use.
package prediction
