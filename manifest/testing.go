package manifest

import (
	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// TestPackage returns a small token package used across test suites:
//
//	map_transfers  (map)   -> proto:eth.token.v1.Transfers
//	store_balances (store) -> bigint
//	store_owners   (store) -> proto:eth.token.v1.Transfer
//	map_volumes    (map)   -> proto:eth.token.v1.Volume, not declared by any proto file
//
// map_volumes reads both stores, the stores read map_transfers.
func TestPackage() *pbsubstreams.Package {
	return &pbsubstreams.Package{
		ProtoFiles: []*descriptorpb.FileDescriptorProto{TestTransfersProtoFile()},
		Modules: &pbsubstreams.Modules{
			Modules: []*pbsubstreams.Module{
				{
					Name:         "map_transfers",
					Kind:         &pbsubstreams.Module_KindMap_{KindMap: &pbsubstreams.Module_KindMap{OutputType: "proto:eth.token.v1.Transfers"}},
					Inputs:       []*pbsubstreams.Module_Input{sourceInput("sf.ethereum.type.v2.Block")},
					InitialBlock: 100,
				},
				{
					Name:         "store_balances",
					Kind:         &pbsubstreams.Module_KindStore_{KindStore: &pbsubstreams.Module_KindStore{ValueType: "bigint"}},
					Inputs:       []*pbsubstreams.Module_Input{mapInput("map_transfers")},
					InitialBlock: 100,
				},
				{
					Name:         "store_owners",
					Kind:         &pbsubstreams.Module_KindStore_{KindStore: &pbsubstreams.Module_KindStore{ValueType: "proto:eth.token.v1.Transfer"}},
					Inputs:       []*pbsubstreams.Module_Input{mapInput("map_transfers")},
					InitialBlock: 100,
				},
				{
					Name:         "map_volumes",
					Kind:         &pbsubstreams.Module_KindMap_{KindMap: &pbsubstreams.Module_KindMap{OutputType: "proto:eth.token.v1.Volume"}},
					Inputs:       []*pbsubstreams.Module_Input{mapInput("map_transfers"), storeInput("store_balances"), storeInput("store_owners")},
					InitialBlock: 100,
				},
			},
		},
		PackageMeta: []*pbsubstreams.PackageMetadata{
			{Name: "token_tracker", Version: "v0.1.0"},
		},
	}
}

// TestTransfersProtoFile declares `eth.token.v1.Transfer { from, to, amount }`
// and `eth.token.v1.Transfers { repeated Transfer items }`.
func TestTransfersProtoFile() *descriptorpb.FileDescriptorProto {
	field := func(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, jsonName string) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			Number:   proto.Int32(number),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:     typ.Enum(),
			JsonName: proto.String(jsonName),
		}
	}

	items := field("items", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "items")
	items.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	items.TypeName = proto.String(".eth.token.v1.Transfer")

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("eth/token/v1/transfers.proto"),
		Package: proto.String("eth.token.v1"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Transfer"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("from", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, "from"),
					field("to", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, "to"),
					field("amount", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT64, "amount"),
					field("log_index", 4, descriptorpb.FieldDescriptorProto_TYPE_UINT32, "logIndex"),
				},
			},
			{
				Name:  proto.String("Transfers"),
				Field: []*descriptorpb.FieldDescriptorProto{items},
			},
		},
	}
}

func sourceInput(typ string) *pbsubstreams.Module_Input {
	return &pbsubstreams.Module_Input{Input: &pbsubstreams.Module_Input_Source_{Source: &pbsubstreams.Module_Input_Source{Type: typ}}}
}

func mapInput(module string) *pbsubstreams.Module_Input {
	return &pbsubstreams.Module_Input{Input: &pbsubstreams.Module_Input_Map_{Map: &pbsubstreams.Module_Input_Map{ModuleName: module}}}
}

func storeInput(module string) *pbsubstreams.Module_Input {
	return &pbsubstreams.Module_Input{Input: &pbsubstreams.Module_Input_Store_{Store: &pbsubstreams.Module_Input_Store{ModuleName: module}}}
}
