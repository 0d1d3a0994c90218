// Package imaging provides the frame-level image operations of the coin
// counter: turning a frame into an edge mask, cutting candidate regions out of
// a frame, normalizing frame size, and loading/saving image files.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Rectangles follow
// image.Rectangle: Min is inclusive, Max is exclusive.
//
// Masks produced by Preprocessor always have their origin at (0,0). Region
// interprets rectangles relative to the frame's origin, so candidate bounds
// found on a mask can be applied directly to the frame the mask came from.
//
// # Preprocessing
//
// Preprocessor.Process runs the sequence
//
//	Gaussian blur -> Canny -> dilate x N -> erode x M -> threshold
//
// Raw edges of a coin under uneven lighting are usually broken arcs rather
// than closed loops. Dilation reconnects the arcs; the smaller number of
// erosions brings the outline back close to the real coin edge so that area
// and bounding-box filtering downstream stay meaningful.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Preprocessor is stateless after
// construction. Region returns views that share pixels with the source frame;
// they must not outlive the frame cycle that produced them.
//
// # Error Handling
//
// Process fails only for frames without pixels (ErrInvalidFrame). Region fails
// with ErrDegenerateRegion when a rectangle clips to zero width or height.
package imaging
