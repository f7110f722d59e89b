package catalog

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// AnyArrayName is the full name of the tagged numeric array message.
const AnyArrayName = "CoreMessages.AnyArray"

const anyArrayRef = "." + AnyArrayName

type fieldType = descriptorpb.FieldDescriptorProto_Type

const (
	tInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tInt64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	tUint32  = descriptorpb.FieldDescriptorProto_TYPE_UINT32
	tUint64  = descriptorpb.FieldDescriptorProto_TYPE_UINT64
	tFloat   = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	tDouble  = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	tBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	tString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tBytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	tEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
	tMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

func scalar(name string, number int32, typ fieldType) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func withDefault(f *descriptorpb.FieldDescriptorProto, value string) *descriptorpb.FieldDescriptorProto {
	f.DefaultValue = proto.String(value)
	return f
}

func message(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, tMessage)
	f.TypeName = proto.String(typeName)
	return f
}

func array(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return message(name, number, anyArrayRef)
}

func enum(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, tEnum)
	f.TypeName = proto.String(typeName)
	return f
}

func enumType(name string, labels ...string) *descriptorpb.EnumDescriptorProto {
	return enumTypeNumbered(name, labels, nil)
}

func enumTypeNumbered(name string, labels []string, numbers []int32) *descriptorpb.EnumDescriptorProto {
	e := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, label := range labels {
		n := int32(i)
		if numbers != nil {
			n = numbers[i]
		}
		e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(label),
			Number: proto.Int32(n),
		})
	}
	return e
}

func msg(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func file(name, pkg string, deps []string, enums []*descriptorpb.EnumDescriptorProto, msgs ...*descriptorpb.DescriptorProto) *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String(name),
		Package:     proto.String(pkg),
		Dependency:  deps,
		EnumType:    enums,
		MessageType: msgs,
		Syntax:      proto.String("proto2"),
	}
}

// builtinFiles describes the camera data model: core arrays, the DL0
// (DataModel) event and run header, and the R1 event/configuration with
// their LST, NectarCAM and DigiCam extensions.
func builtinFiles() []*descriptorpb.FileDescriptorProto {
	anyArray := msg("AnyArray",
		enum("type", 1, ".CoreMessages.AnyArray.ArrayType"),
		scalar("data", 2, tBytes),
	)
	anyArray.EnumType = []*descriptorpb.EnumDescriptorProto{
		enumType("ArrayType", "NONE", "S8", "U8", "S16", "U16", "S32", "U32", "S64", "U64", "FLOAT", "DOUBLE", "BOOL"),
	}

	core := file("CoreMessages.proto", "CoreMessages", nil, nil, anyArray)

	dataModel := file("L0.proto", "DataModel", []string{"CoreMessages.proto"},
		[]*descriptorpb.EnumDescriptorProto{
			enumType("EventType", "NONE", "PHYSICAL", "PEDESTAL", "DARK", "FLATFIELD", "UNKNOWN"),
		},
		msg("WaveFormData",
			array("samples", 1),
			array("pixelsIndices", 2),
			array("firstSplIdx", 3),
			scalar("num_samples", 4, tInt32),
			array("baselines", 5),
			array("peak_time_pos", 6),
			array("time_over_threshold", 7),
		),
		msg("IntegralData",
			array("gains", 1),
			array("maximumTimes", 2),
			array("tailTimes", 3),
			array("raiseTimes", 4),
			array("pixelsIndices", 5),
			array("firstSplIdx", 6),
		),
		msg("PixelsChannel",
			message("waveforms", 1, ".DataModel.WaveFormData"),
			message("integrals", 2, ".DataModel.IntegralData"),
		),
		msg("TriggerInfo",
			scalar("timeSec", 1, tUint32),
			scalar("timeNanoSec", 2, tUint32),
		),
		msg("EventHeader",
			withDefault(scalar("numGainChannels", 1, tInt32), "-1"),
		),
		msg("CameraEvent",
			scalar("telescopeID", 1, tInt32),
			scalar("dateMJD", 2, tDouble),
			enum("eventType", 3, ".DataModel.EventType"),
			scalar("eventNumber", 4, tUint32),
			scalar("arrayEvtNum", 5, tInt32),
			message("hiGain", 6, ".DataModel.PixelsChannel"),
			message("loGain", 7, ".DataModel.PixelsChannel"),
			message("trig", 8, ".DataModel.TriggerInfo"),
			message("head", 9, ".DataModel.EventHeader"),
			scalar("local_time_sec", 10, tUint32),
			scalar("local_time_nanosec", 11, tUint32),
			scalar("event_type", 12, tUint32),
			scalar("num_gains", 13, tInt32),
			array("pixels_flags", 14),
			array("trigger_input_traces", 15),
			array("trigger_output_patch7", 16),
			array("trigger_output_patch19", 17),
		),
		msg("CameraRunHeader",
			scalar("telescopeID", 1, tInt32),
			scalar("dateMJD", 2, tUint32),
			scalar("runNumber", 3, tUint32),
			scalar("numTraces", 4, tUint32),
			withDefault(scalar("numGainChannels", 5, tInt32), "-1"),
			scalar("cameraVersion", 6, tString),
			scalar("isSimulation", 7, tBool),
		),
	)

	lstcam := file("R1_LSTCam.proto", "R1_LSTCam", []string{"CoreMessages.proto"}, nil,
		msg("LSTCameraEvent",
			array("module_status", 1),
			scalar("extdevices_presence", 2, tUint32),
			array("counters", 3),
			array("chips_flags", 4),
			array("first_capacitor_id", 5),
			array("drs_tag_status", 6),
			array("drs_tag", 7),
		),
		msg("LSTCameraConfig",
			scalar("idaq_version", 1, tUint32),
			scalar("num_modules", 2, tUint32),
			array("expected_modules_id", 3),
			scalar("algorithms", 4, tString),
			scalar("pre_proc_algorithms", 5, tString),
		),
	)

	nectarcam := file("R1_NectarCam.proto", "R1_NectarCam", []string{"CoreMessages.proto"}, nil,
		msg("NectarCamEvent",
			array("module_status", 1),
			scalar("extdevices_presence", 2, tUint32),
			array("tib_data", 3),
			array("cdts_data", 4),
			array("swat_data", 5),
			array("counters", 6),
		),
		msg("NectarCamConfig",
			scalar("num_modules", 1, tUint32),
			array("expected_modules_id", 2),
			scalar("idaq_version", 3, tUint32),
			scalar("cdhs_version", 4, tUint32),
			scalar("algorithms", 5, tString),
			scalar("pre_proc_algorithms", 6, tString),
		),
	)

	digicam := file("R1_DigiCam.proto", "R1_DigiCam", []string{"CoreMessages.proto"},
		[]*descriptorpb.EnumDescriptorProto{
			enumTypeNumbered("TriggerSource",
				[]string{"UNKNOWN", "INTERNAL", "EXTERNAL", "CLOCK"},
				[]int32{0, 1, 2, 8}),
		},
		msg("DigiCamEvent",
			enum("event_type", 1, ".R1_DigiCam.TriggerSource"),
			scalar("array_event_type", 2, tInt32),
			array("trigger_input_traces", 3),
			array("trigger_output_patch7", 4),
			array("trigger_output_patch19", 5),
			scalar("local_time_sec", 6, tUint32),
			scalar("local_time_nanosec", 7, tUint32),
			array("pixels_flags", 8),
		),
	)

	r1 := file("R1.proto", "R1", []string{"CoreMessages.proto", "R1_LSTCam.proto", "R1_DigiCam.proto", "R1_NectarCam.proto"}, nil,
		msg("CameraEvent",
			scalar("event_id", 1, tUint64),
			scalar("tel_event_id", 2, tUint64),
			scalar("trigger_time_s", 3, tUint32),
			scalar("trigger_time_qns", 4, tUint32),
			scalar("trigger_type", 5, tUint32),
			array("waveform", 6),
			array("pixel_status", 7),
			scalar("ped_id", 8, tUint32),
			message("lstcam", 9, ".R1_LSTCam.LSTCameraEvent"),
			message("digicam", 10, ".R1_DigiCam.DigiCamEvent"),
			scalar("configuration_id", 11, tUint32),
			scalar("calibration_gain", 12, tFloat),
			scalar("num_channels", 13, tInt64),
			message("nectarcam", 14, ".R1_NectarCam.NectarCamEvent"),
		),
		msg("CameraConfiguration",
			scalar("telescope_id", 1, tUint32),
			scalar("configuration_id", 2, tUint32),
			scalar("date", 3, tUint64),
			scalar("num_pixels", 4, tUint32),
			scalar("num_samples", 5, tUint32),
			array("pixel_id_map", 6),
			array("expected_pixels_id", 7),
			message("lstcam", 8, ".R1_LSTCam.LSTCameraConfig"),
			message("nectarcam", 9, ".R1_NectarCam.NectarCamConfig"),
		),
	)

	return []*descriptorpb.FileDescriptorProto{core, dataModel, lstcam, nectarcam, digicam, r1}
}
