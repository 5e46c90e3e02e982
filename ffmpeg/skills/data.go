package skills

var releasedata = `ffprobe version 4.4.1-datarhei Copyright (c) 2007-2021 the FFmpeg developers
built with gcc 10.3.1 (Alpine 10.3.1_git20211027) 20211027
configuration: --extra-version=datarhei --prefix=/usr --enable-nonfree --enable-gpl --enable-version3 --enable-libx264 --enable-libx265 --enable-libvpx --disable-ffplay --disable-debug --disable-doc --disable-shared
libavutil      56. 70.100 / 56. 70.100
libavcodec     58.134.100 / 58.134.100
libavformat    58. 76.100 / 58. 76.100
libavdevice    58. 13.100 / 58. 13.100
libavfilter     7.110.100 /  7.110.100
libswscale      5.  9.100 /  5.  9.100
libswresample   3.  9.100 /  3.  9.100
libpostproc    55.  9.100 / 55.  9.100`

var shortdata = `ffprobe version 6.0 Copyright (c) 2007-2023 the FFmpeg developers
built with Apple clang version 14.0.3 (clang-1403.0.22.14.1)
libavutil      58.  2.100 / 58.  2.100`

var gitdata = `ffprobe version N-111746-gd53acf452f Copyright (c) 2007-2023 the FFmpeg developers
built with gcc 12 (Debian 12.2.0-14)
configuration: --enable-gpl --enable-libx264
libavutil      58. 16.101 / 58. 16.101
libavcodec     60. 23.100 / 60. 23.100`

var olddata = `ffprobe version 2.8.17-0ubuntu0.1 Copyright (c) 2007-2020 the FFmpeg developers
  built with gcc 5.4.0 (Ubuntu 5.4.0-6ubuntu1~16.04.12) 20160609
  configuration: --prefix=/usr --extra-version=0ubuntu0.1
  libavutil      54. 31.100 / 54. 31.100`
