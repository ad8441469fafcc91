// Package y4m implements codec.Input and codec.Output for YUV4MPEG2 files.
//
// YUV4MPEG2 stores uncompressed planar frames behind a one-line header, so
// every frame is a keyframe and seeking is exact. Only the 4:2:0 chroma
// layouts are accepted, which matches the packed YUV420P buffers used
// throughout the media core.
//
//	YUV4MPEG2 W640 H360 F30:1 Ip A1:1 C420jpeg
//	FRAME
//	<w*h bytes Y><w*h/4 bytes U><w*h/4 bytes V>
//	FRAME
//	...
package y4m
