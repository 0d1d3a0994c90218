// Package detection finds coin candidates in an edge mask.
//
// # Algorithm Overview
//
// Extract works on the binary mask produced by imaging.Preprocessor:
//
//  1. Background fill: flood-fill the "off" pixels reachable from the image
//     border (4-connected). Off pixels that are not reached are enclosed by an
//     edge loop.
//  2. Outer regions: group "on" pixels and enclosed pixels into 8-connected
//     regions. Each region is the filled interior of one outer boundary, so
//     loops nested inside a coin are absorbed instead of being reported.
//  3. Filtering: keep regions whose area strictly exceeds the minimum area.
//
// Area is measured in pixels of the filled region. Bounding rectangles are
// axis-aligned and use image.Rectangle conventions (Max exclusive).
//
// # Ordering
//
// Candidates are returned in raster-scan order of their top-most, left-most
// pixel. The order is not meaningful; callers must not depend on it.
//
// # Border Handling
//
// Regions touching the frame border are kept. An outline broken by the border
// is not closed, so such a coin usually only contributes its edge pixels.
package detection
