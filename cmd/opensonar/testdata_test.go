package main

import (
	"os"
	"path/filepath"
	"testing"
)

const testRawLog = `OSP_RAW_LOG
Header_Start
Line 4,ops,2022-01-14
6378137,298.257223563
RV Tiaki
F9P,GNSS1,0.05,0.1,-0.25,1.2
Ping1D,SON1,0.1,3,4,-0.2
miniSVS,SVP1,0.15
GNSS,/dev/ttyACM0,9600
Sonar,/dev/ttyUSB0,115200
SVP,/dev/ttyUSB1,19200
Header_End
12:00:00.000000,$GPGGA,120000.00,4807.0380,N,01131.0000,E,1,08,0.9,10.000,M,0.500,M,,*68
12:00:00.250000,$DEPTH,2000,100,208,0,24000,3,1500
12:00:00.500000,$GPRMC,120000.00,A,4807.0380,N,01131.0000,E,022.4,084.4,230394,003.1,W,A,V*5D
12:00:00.750000,$DEPTH,3000,100,208,0,24000,3,1500
12:00:01.000000,$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K,A*25
12:00:01.250000,BADTAG,1,2
12:00:01.500000,$GPGLL,4807.0380,N,01131.0000,E,120001.00,A,A*69
12:00:01.750000,$DEPTH,2500,100,208,0,24000,3,1490
`

func writeTestRawLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "line4_raw.csv")
	if err := os.WriteFile(path, []byte(testRawLog), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}
