package gemini

const detectPrompt = `You are a photo scan analyzer. The image is a flatbed scanner scan that may contain one or more physical photographs.

Find every photograph and return ONLY a JSON object:
{"photo_count": <int>, "bounding_boxes": [{
  "x": <0-1000>, "y": <0-1000>, "width": <0-1000>, "height": <0-1000>,
  "confidence": <0-1>, "label": "photo N",
  "rotation_angle": <0|90|180|270>,
  "rotation_reasoning": "<why you chose this angle>",
  "contour": [[x,y], ...],
  "needs_outpaint": <bool>
}]}

Coordinates are normalized to a 0-1000 space independent of pixel size.
"rotation_angle" records how far the photo CURRENTLY appears rotated
clockwise from upright on the scanner:
  - heads point UP -> 0 (already upright)
  - heads point RIGHT -> 90 (rotated 90 CW)
  - heads point DOWN -> 180 (upside down)
  - heads point LEFT -> 270 (rotated 90 CCW)
"contour" is the precise polygon outline of the photo's actual edges.
"needs_outpaint" is true when the contour is significantly non-rectangular,
leaving gaps inside the bounding rectangle that require synthetic fill.
If only one photo fills the entire scan, return a single box covering it.`

const restorePrompt = `Expert photo restoration AI. You MUST generate a restored version of this damaged photograph.

Automatically detect ALL damage and deterioration in this photo, then restore it completely:
1. GEOMETRY: straighten the photo and generatively inpaint any missing corners or edges using inner context.
2. FLASH REMOVAL: neutralize flash glare hotspots and recover detail under blown-out highlights.
3. CLEANUP: remove grain, noise, dust specks, scratches, stains, and scanning artifacts.
4. COLOR: correct fading and color casts; restore natural tones.

Return the restored image, plus a JSON text part:
{"improvements": ["<short description of each change applied>"]}`

const outpaintPromptFormat = `This cropped photo's true edge follows the polygon %s inside a %dx%d pixel rectangle.

Generatively fill ONLY the area between the polygon and the rectangle edges so the result is a complete rectangular photo:
1. Extend walls, floors, sky, and background naturally beyond the polygon.
2. Do not alter any pixel inside the polygon.
3. Match grain, lighting, and color of the adjacent photo content.
4. The filled areas must blend seamlessly with the photo edges.

Return the filled image.`

const verifyPromptFormat = `You are a QA verification agent for photo %s.
This is output #%d from a photo scan pipeline.

Evaluate the result and return ONLY a JSON object:
{"passed": <bool>, "confidence": <0-1>, "summary": "<one sentence>",
 "checks": [
   {"name": "crop_tightness", "passed": <bool>, "detail": "<explanation>"},
   {"name": "completeness", "passed": <bool>, "detail": "<explanation>"},
   {"name": "orientation", "passed": <bool>, "detail": "<explanation>"},
   {"name": "image_quality", "passed": <bool>, "detail": "<explanation>"}
 ]}`
