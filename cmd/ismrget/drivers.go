package main

// Bucket drivers available to -output. Local directories map to file://.
import (
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
)
