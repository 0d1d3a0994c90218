// Package opencv adapts OpenCV (through gocv) to the coin counter: a camera
// frame source, display windows and an ONNX classification model.
//
// This is the only package that needs cgo and an OpenCV installation. The
// rest of the module depends on the small interfaces these types satisfy
// (capture.Source, render.Display, classifier.Model), so it builds and tests
// without OpenCV.
package opencv
