package proto

import (
	"testing"
)

func TestMotorChannelVerb(t *testing.T) {
	tests := []struct {
		ch   MotorChannel
		want string
	}{
		{MotorA, VerbSetAEngine},
		{MotorB, VerbSetBEngine},
		{MotorAll, VerbSetAllEngine},
	}
	for _, tt := range tests {
		if got := tt.ch.Verb(); got != tt.want {
			t.Errorf("%v.Verb() = %q, want %q", tt.ch, got, tt.want)
		}
	}
}

func TestSetMotorLine(t *testing.T) {
	if got := SetMotorLine(MotorA, 128); got != "SetAEngine 128" {
		t.Errorf("SetMotorLine(A, 128) = %q", got)
	}
	if got := SetMotorLine(MotorB, -255); got != "SetBEngine -255" {
		t.Errorf("SetMotorLine(B, -255) = %q", got)
	}
	if got := SetMotorLine(MotorAll, 0); got != "SetAllEngine 0" {
		t.Errorf("SetMotorLine(All, 0) = %q", got)
	}
}

func TestSetServoLine(t *testing.T) {
	if got := SetServoLine(3, 145); got != "SetServo 3 145" {
		t.Errorf("SetServoLine(3, 145) = %q", got)
	}
}

func TestSetServosLine(t *testing.T) {
	got, err := SetServosLine([]ServoTarget{{ID: 1, Deg: 90}, {ID: 2, Deg: 45}})
	if err != nil {
		t.Fatalf("SetServosLine error = %v", err)
	}
	want := `SetServos {"items":[{"id":1,"deg":90},{"id":2,"deg":45}]}`
	if got != want {
		t.Errorf("SetServosLine = %q, want %q", got, want)
	}
}

func TestServoPwrLine(t *testing.T) {
	if got := ServoPwrLine(PowerArduino); got != "ServoPwr ARDUINO" {
		t.Errorf("ServoPwrLine(ARDUINO) = %q", got)
	}
	if got := ServoPwrLine(PowerExternal); got != "ServoPwr EXTERNAL" {
		t.Errorf("ServoPwrLine(EXTERNAL) = %q", got)
	}
}

func TestServoAttachLine(t *testing.T) {
	if got := ServoAttachLine(2, true); got != "ServoAttach 2" {
		t.Errorf("ServoAttachLine(2, attach) = %q", got)
	}
	if got := ServoAttachLine(2, false); got != "ServoDetach 2" {
		t.Errorf("ServoAttachLine(2, detach) = %q", got)
	}
}

func TestEStopLine(t *testing.T) {
	if got := EStopLine(false); got != "EStop" {
		t.Errorf("EStopLine(false) = %q", got)
	}
	if got := EStopLine(true); got != "EStop RESET" {
		t.Errorf("EStopLine(true) = %q", got)
	}
}

func TestParsePowerMode(t *testing.T) {
	tests := []struct {
		in      string
		want    PowerMode
		wantErr bool
	}{
		{"arduino", PowerArduino, false},
		{"ARDUINO", PowerArduino, false},
		{" external ", PowerExternal, false},
		{"usb", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePowerMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePowerMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePowerMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpectPrefixes(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"PING", []string{"OK PONG"}},
		{"ServoPwr ARDUINO", []string{"OK SERVO_PWR"}},
		{"TELEM", []string{"OK TELEM"}},
		{"SetAEngine 100", []string{"OK SETAENGINE"}},
		{"SetServo 1 90", []string{"OK SETSERVO"}},
		{"SetServos {}", []string{"OK SETSERVOS"}},
		{"CAPS", []string{"OK CAPS"}},
		{"ServoCenter", []string{"OK SERVO_CENTER"}},
		{"EStop", []string{"OK ESTOP"}},
		{"EStop RESET", []string{"OK ESTOP"}},
		{"SomethingNew 42", []string{"OK"}},
		{"", []string{"OK"}},
	}
	for _, tt := range tests {
		got := ExpectPrefixes(tt.line)
		if len(got) != len(tt.want) {
			t.Errorf("ExpectPrefixes(%q) = %v, want %v", tt.line, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ExpectPrefixes(%q) = %v, want %v", tt.line, got, tt.want)
				break
			}
		}
	}
}

func TestMotorAndServoVerb(t *testing.T) {
	if !MotorVerb("SetAEngine 100") || !MotorVerb("SetAllEngine 0") {
		t.Error("MotorVerb missed a motor command")
	}
	if MotorVerb("SetServo 1 90") {
		t.Error("MotorVerb matched a servo command")
	}
	if !ServoVerb("SetServo 1 90") || !ServoVerb("SetServos {}") {
		t.Error("ServoVerb missed a servo command")
	}
	if ServoVerb("SetBEngine 5") {
		t.Error("ServoVerb matched a motor command")
	}
}
