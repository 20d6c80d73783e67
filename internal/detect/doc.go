// Package detect turns captured media into scored suspicion signals.
//
// The analyzers here own the scoring rules; the model-backed heavy lifting
// (face location, embeddings, object detection, speech recognition) sits
// behind narrow interfaces implemented by external-tool adapters in the
// subpackages, so the pipeline can be exercised without any models
// installed.
package detect
