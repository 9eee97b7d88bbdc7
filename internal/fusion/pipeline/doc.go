// Package pipeline runs one complete fusion pass per frame.
//
// The static map is moved into the sensor frame once per frame, cropped to
// the visibility range, then every camera is processed independently:
// projection into a depth buffer, ground segmentation of the visible
// subset, clustering, ranking and overlay rendering. Outputs are handed to
// sinks; the pipeline does not own any transport or storage.
package pipeline
