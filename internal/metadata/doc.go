/*
Package metadata reads and writes the embedded metadata the browser cares
about: capture dates, star rating and, for PNG, generation parameters.

EXIF is read with goexif from the JPEG APP1 "Exif" segment, the PNG eXIf
chunk (or a legacy "Raw profile type exif" text chunk) and the WebP EXIF
chunk. XMP is read with etree from the matching APP1, iTXt and "XMP " chunk.

A rating can live in four places. Read resolves them in this order and the
first valid one wins:

 1. EXIF Rating (IFD0 tag 18246)
 2. xmp:Rating
 3. EXIF RatingPercent (tag 18249), quantized
 4. xmp:RatingPercent (or MicrosoftPhoto:Rating), quantized

WriteRating updates both EXIF and XMP and leaves every other chunk or
segment byte-identical. WebP is read-only.
*/
package metadata
